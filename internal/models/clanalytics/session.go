package clanalytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type SessionInput struct {
	UserID       *uint
	SessionToken string
	Request      *http.Request
}

// CreateOrUpdateSession crée la session au premier passage, sinon recalcule la durée depuis le début et incrémente les interactions
func (s *Service) CreateOrUpdateSession(ctx context.Context, store *Store, in SessionInput) (*Session, error) {
	db := store.DB().WithContext(ctx)

	var session Session
	err := db.Where("session_token = ?", in.SessionToken).First(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, createErr := s.createSession(db, in)
		if createErr == nil {
			return created, nil
		}
		// création concurrente du même jeton, on repasse en mise à jour
		if lookupErr := db.Where("session_token = ?", in.SessionToken).First(&session).Error; lookupErr != nil {
			return nil, fmt.Errorf("error creating session: %w", createErr)
		}
	case err != nil:
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	return s.touchSession(db, &session, in.UserID)
}

func (s *Service) createSession(db *gorm.DB, in SessionInput) (*Session, error) {
	now := s.now()
	device := ClassifyRequest(in.Request)
	session := &Session{
		SessionToken:   in.SessionToken,
		UserID:         in.UserID,
		StartedAt:      now,
		LastActivityAt: now,
		Platform:       stringPtr(device.Platform),
		DeviceType:     stringPtr(device.DeviceType),
		Browser:        stringPtr(device.Browser),
		OS:             stringPtr(device.OS),
		IPAddress:      stringPtr(ClientIP(in.Request)),
	}

	if err := db.Create(session).Error; err != nil {
		return nil, err
	}
	log.Debug().Str("session_token", in.SessionToken).Msg("Session created")
	return session, nil
}

// touchSession la durée n'est jamais incrémentale, elle vaut maintenant moins le début
func (s *Service) touchSession(db *gorm.DB, session *Session, userID *uint) (*Session, error) {
	now := s.now()
	duration := int64(now.Sub(session.StartedAt).Seconds())
	if duration < session.Duration {
		duration = session.Duration
	}

	updates := map[string]interface{}{
		"last_activity_at": now,
		"duration":         duration,
		"interactions":     gorm.Expr("interactions + ?", 1),
	}
	if session.UserID == nil && userID != nil {
		updates["user_id"] = *userID
	}

	if err := db.Model(&Session{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating session: %w", err)
	}

	var updated Session
	if err := db.First(&updated, session.ID).Error; err != nil {
		return nil, fmt.Errorf("error reloading session: %w", err)
	}
	return &updated, nil
}

// IncrementSessionPageViews une session absente n'est pas une erreur
func (s *Service) IncrementSessionPageViews(ctx context.Context, store *Store, sessionToken string) error {
	result := store.DB().WithContext(ctx).
		Model(&Session{}).
		Where("session_token = ?", sessionToken).
		Update("page_views", gorm.Expr("page_views + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("error incrementing page views: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.Debug().Str("session_token", sessionToken).Msg("page view for unknown session")
	}
	return nil
}
