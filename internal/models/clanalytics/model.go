package clanalytics

import (
	"time"

	"gorm.io/datatypes"
)

// Types d'événements connus, un appelant peut en fournir d'autres
const (
	EventPageView          = "page_view"
	EventClick             = "click"
	EventPurchase          = "purchase"
	EventSearch            = "search"
	EventNotificationOpen  = "notification_open"
	EventNotificationClick = "notification_click"
	EventError             = "error"
)

// Event représente une action observée, jamais modifiée après écriture
type Event struct {
	ID         uint64            `gorm:"primaryKey" json:"id"`
	UserID     *uint             `gorm:"index" json:"userId"`
	SessionID  *string           `gorm:"index;size:191" json:"sessionId"`
	EventType  string            `gorm:"index;size:64;not null" json:"eventType"`
	EventName  string            `gorm:"index;size:191;not null" json:"eventName"`
	Category   *string           `gorm:"index;size:64" json:"category"`
	PagePath   *string           `gorm:"size:512" json:"pagePath"`
	PageTitle  *string           `gorm:"size:512" json:"pageTitle"`
	Referrer   *string           `gorm:"size:512" json:"referrer"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	Platform   *string           `gorm:"size:32" json:"platform"`
	DeviceType *string           `gorm:"size:32" json:"deviceType"`
	Browser    *string           `gorm:"size:64" json:"browser"`
	OS         *string           `gorm:"column:os;size:64" json:"os"`
	IPAddress  *string           `gorm:"size:64" json:"ipAddress"`
	Country    *string           `gorm:"size:8" json:"country"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
	User       *Actor            `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Session représente une session utilisateur continue
type Session struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionToken   string    `gorm:"uniqueIndex;size:191;not null" json:"sessionToken"`
	UserID         *uint     `gorm:"index" json:"userId"`
	StartedAt      time.Time `gorm:"index" json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Duration       int64     `json:"duration"`
	PageViews      int       `json:"pageViews"`
	Interactions   int       `json:"interactions"`
	Platform       *string   `gorm:"size:32" json:"platform"`
	DeviceType     *string   `gorm:"size:32" json:"deviceType"`
	Browser        *string   `gorm:"size:64" json:"browser"`
	OS             *string   `gorm:"column:os;size:64" json:"os"`
	IPAddress      *string   `gorm:"size:64" json:"ipAddress"`
	User           *Actor    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Campaign campagne de notifications push, gérée par le service de notifications
type Campaign struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Status    string    `gorm:"size:32" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotificationLog trace l'envoi d'une notification à un utilisateur
type NotificationLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CampaignID uint       `gorm:"index" json:"campaignId"`
	UserID     uint       `gorm:"index" json:"userId"`
	SentAt     time.Time  `json:"sentAt"`
	OpenedAt   *time.Time `gorm:"index" json:"openedAt"`
	ClickedAt  *time.Time `gorm:"index" json:"clickedAt"`
}

// Actor projection en lecture seule de la table users
type Actor struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Event) TableName() string {
	return "analytics_events"
}

func (Session) TableName() string {
	return "analytics_sessions"
}

func (Campaign) TableName() string {
	return "push_campaigns"
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

func (Actor) TableName() string {
	return "users"
}

// Models liste les tables à migrer pour une base de club
func Models() []interface{} {
	return []interface{}{&Actor{}, &Event{}, &Session{}, &Campaign{}, &NotificationLog{}}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
