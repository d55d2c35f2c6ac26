package clanalytics

import (
	"context"
	"net/http"
	"time"

	"gorm.io/datatypes"
)

// Enqueuer file d'attente des événements, implémentée par BatchBuffer
type Enqueuer interface {
	Enqueue(ctx context.Context, entry Entry)
}

// CountryResolver code pays ISO d'une adresse IP, chaîne vide si inconnu
type CountryResolver interface {
	Country(ip string) string
}

// Service point d'entrée du suivi et des lectures statistiques
type Service struct {
	buffer   Enqueuer
	realtime RealtimeRecorder
	geo      CountryResolver
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithCountryResolver(r CountryResolver) ServiceOption {
	return func(s *Service) { s.geo = r }
}

func WithRealtimeReader(r RealtimeRecorder) ServiceOption {
	return func(s *Service) { s.realtime = r }
}

func NewService(buffer Enqueuer, opts ...ServiceOption) *Service {
	s := &Service{buffer: buffer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackInput appel de suivi brut, EventType et EventName sont validés en amont
type TrackInput struct {
	UserID    *uint
	SessionID string
	EventType string
	EventName string
	Category  string
	PagePath  string
	PageTitle string
	Referrer  string
	Metadata  map[string]interface{}
	Request   *http.Request
}

// Receipt accusé de mise en file, ne garantit pas la persistance
type Receipt struct {
	Queued   bool      `json:"queued"`
	QueuedAt time.Time `json:"queuedAt"`
}

// TrackEvent construit l'événement et le place en file, aucune erreur n'est remontée
func (s *Service) TrackEvent(ctx context.Context, dest Destination, in TrackInput) Receipt {
	event := s.buildEvent(in)
	s.buffer.Enqueue(ctx, Entry{Destination: dest, Event: event})
	return Receipt{Queued: true, QueuedAt: s.now()}
}

func (s *Service) buildEvent(in TrackInput) Event {
	event := Event{
		UserID:    in.UserID,
		SessionID: stringPtr(in.SessionID),
		EventType: in.EventType,
		EventName: in.EventName,
		Category:  stringPtr(in.Category),
		PagePath:  stringPtr(in.PagePath),
		PageTitle: stringPtr(in.PageTitle),
		Referrer:  stringPtr(in.Referrer),
	}
	if len(in.Metadata) > 0 {
		event.Metadata = datatypes.JSONMap(in.Metadata)
	}

	if in.Request == nil {
		return event
	}

	device := ClassifyRequest(in.Request)
	event.Platform = stringPtr(device.Platform)
	event.DeviceType = stringPtr(device.DeviceType)
	event.Browser = stringPtr(device.Browser)
	event.OS = stringPtr(device.OS)

	ip := ClientIP(in.Request)
	event.IPAddress = stringPtr(ip)
	if s.geo != nil && ip != "" {
		event.Country = stringPtr(s.geo.Country(ip))
	}
	return event
}
