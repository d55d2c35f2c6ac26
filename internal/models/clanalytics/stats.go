package clanalytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	topPagesLimit    = 10
)

// StatsFilter bornes et filtres optionnels, nil ou vide signifie sans filtre
type StatsFilter struct {
	Start     *time.Time
	End       *time.Time
	UserID    *uint
	EventType string
}

type EventListFilter struct {
	StatsFilter
	EventName string
	Category  string
	Page      int
	Limit     int
}

type SessionListFilter struct {
	Start  *time.Time
	End    *time.Time
	UserID *uint
	Page   int
	Limit  int
}

// Stats représente les agrégats du tableau de bord
type Stats struct {
	TotalEvents  int64       `json:"totalEvents"`
	UniqueUsers  int64       `json:"uniqueUsers"`
	EventsByType []TypeCount `json:"eventsByType"`
	TopPages     []PageCount `json:"topPages"`
}

type TypeCount struct {
	EventType string `json:"eventType"`
	Count     int64  `json:"count"`
}

type PageCount struct {
	PagePath string `json:"pagePath"`
	Count    int64  `json:"count"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type EventPage struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}

type SessionPage struct {
	Sessions   []Session  `json:"sessions"`
	Pagination Pagination `json:"pagination"`
}

// GetStats total, utilisateurs distincts non nuls, répartition par type et top 10 des pages vues
func (s *Service) GetStats(ctx context.Context, store *Store, filter StatsFilter) (*Stats, error) {
	db := store.DB().WithContext(ctx)
	stats := &Stats{EventsByType: []TypeCount{}, TopPages: []PageCount{}}

	// 1. Total des événements
	err := db.Model(&Event{}).
		Scopes(filter.scope).
		Count(&stats.TotalEvents).Error
	if err != nil {
		return nil, fmt.Errorf("error counting events: %w", err)
	}

	// 2. Utilisateurs uniques
	err = db.Model(&Event{}).
		Scopes(filter.scope).
		Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&stats.UniqueUsers).Error
	if err != nil {
		return nil, fmt.Errorf("error counting unique users: %w", err)
	}

	// 3. Répartition par type
	err = db.Model(&Event{}).
		Select("event_type, COUNT(*) as count").
		Scopes(filter.scope).
		Group("event_type").
		Order("count DESC, event_type").
		Scan(&stats.EventsByType).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping events by type: %w", err)
	}

	// 4. Top des pages parmi les page_view
	pageFilter := filter
	pageFilter.EventType = EventPageView
	err = db.Model(&Event{}).
		Select("page_path, COUNT(*) as count").
		Scopes(pageFilter.scope).
		Where("page_path IS NOT NULL").
		Group("page_path").
		Order("count DESC, page_path").
		Limit(topPagesLimit).
		Scan(&stats.TopPages).Error
	if err != nil {
		return nil, fmt.Errorf("error getting top pages: %w", err)
	}

	return stats, nil
}

// ListEvents liste paginée, du plus récent au plus ancien, avec l'utilisateur associé
func (s *Service) ListEvents(ctx context.Context, store *Store, filter EventListFilter) (*EventPage, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	db := store.DB().WithContext(ctx)

	query := db.Model(&Event{}).Scopes(filter.StatsFilter.scope)
	if filter.EventName != "" {
		query = query.Where("event_name = ?", filter.EventName)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("error counting events: %w", err)
	}

	events := []Event{}
	err := query.Session(&gorm.Session{}).
		Preload("User").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}

	return &EventPage{Events: events, Pagination: newPagination(page, limit, total)}, nil
}

func (s *Service) ListSessions(ctx context.Context, store *Store, filter SessionListFilter) (*SessionPage, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	db := store.DB().WithContext(ctx)

	query := db.Model(&Session{})
	if filter.Start != nil {
		query = query.Where("started_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("started_at <= ?", *filter.End)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("error counting sessions: %w", err)
	}

	sessions := []Session{}
	err := query.Session(&gorm.Session{}).
		Preload("User").
		Order("started_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}

	return &SessionPage{Sessions: sessions, Pagination: newPagination(page, limit, total)}, nil
}

func (f StatsFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Start != nil {
		db = db.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		db = db.Where("created_at <= ?", *f.End)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.EventType != "" {
		db = db.Where("event_type = ?", f.EventType)
	}
	return db
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}
