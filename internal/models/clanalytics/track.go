package clanalytics

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

type PageViewInput struct {
	UserID    *uint
	SessionID string
	PagePath  string
	PageTitle string
	Referrer  string
	Request   *http.Request
}

type ClickInput struct {
	UserID       *uint
	SessionID    string
	ElementID    string
	ElementText  string
	ElementClass string
	PagePath     string
	Metadata     map[string]interface{}
	Request      *http.Request
}

type PurchaseInput struct {
	UserID    *uint
	SessionID string
	ProductID string
	Amount    float64
	Currency  string
	Request   *http.Request
}

type SearchInput struct {
	UserID       *uint
	SessionID    string
	Query        string
	ResultsCount int
	Request      *http.Request
}

type ErrorInput struct {
	UserID    *uint
	SessionID string
	Message   string
	Stack     string
	PagePath  string
	Request   *http.Request
}

type NotificationInput struct {
	UserID            *uint
	CampaignID        uint
	NotificationLogID *uint
	ButtonType        string
	TargetModule      string
	Request           *http.Request
}

// TrackPageView met aussi à jour le compteur de la session si elle existe
func (s *Service) TrackPageView(ctx context.Context, store *Store, in PageViewInput) Receipt {
	receipt := s.TrackEvent(ctx, store, TrackInput{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		EventType: EventPageView,
		EventName: "page_view",
		Category:  "navigation",
		PagePath:  in.PagePath,
		PageTitle: in.PageTitle,
		Referrer:  in.Referrer,
		Request:   in.Request,
	})

	if in.SessionID != "" {
		if err := s.IncrementSessionPageViews(ctx, store, in.SessionID); err != nil {
			log.Warn().Err(err).Str("club", store.Name()).Msg("failed to increment session page views")
		}
	}
	return receipt
}

// TrackClick les champs de l'élément écrasent les clés homonymes des métadonnées
func (s *Service) TrackClick(ctx context.Context, dest Destination, in ClickInput) Receipt {
	metadata := make(map[string]interface{}, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["elementId"] = in.ElementID
	metadata["elementText"] = in.ElementText
	metadata["elementClass"] = in.ElementClass

	return s.TrackEvent(ctx, dest, TrackInput{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		EventType: EventClick,
		EventName: "element_click",
		Category:  "interaction",
		PagePath:  in.PagePath,
		Metadata:  metadata,
		Request:   in.Request,
	})
}

func (s *Service) TrackPurchase(ctx context.Context, dest Destination, in PurchaseInput) Receipt {
	return s.TrackEvent(ctx, dest, TrackInput{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		EventType: EventPurchase,
		EventName: "purchase",
		Category:  "transaction",
		Metadata: map[string]interface{}{
			"productId": in.ProductID,
			"amount":    in.Amount,
			"currency":  in.Currency,
		},
		Request: in.Request,
	})
}

func (s *Service) TrackSearch(ctx context.Context, dest Destination, in SearchInput) Receipt {
	return s.TrackEvent(ctx, dest, TrackInput{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		EventType: EventSearch,
		EventName: "search",
		Category:  "search",
		Metadata: map[string]interface{}{
			"query":        in.Query,
			"resultsCount": in.ResultsCount,
		},
		Request: in.Request,
	})
}

func (s *Service) TrackError(ctx context.Context, dest Destination, in ErrorInput) Receipt {
	return s.TrackEvent(ctx, dest, TrackInput{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		EventType: EventError,
		EventName: "client_error",
		Category:  "system",
		PagePath:  in.PagePath,
		Metadata: map[string]interface{}{
			"message": in.Message,
			"stack":   in.Stack,
		},
		Request: in.Request,
	})
}

func (s *Service) TrackNotificationOpen(ctx context.Context, store *Store, in NotificationInput) Receipt {
	s.markNotificationLog(ctx, store, in.NotificationLogID, "opened_at")
	return s.trackNotification(ctx, store, EventNotificationOpen, in)
}

func (s *Service) TrackNotificationClick(ctx context.Context, store *Store, in NotificationInput) Receipt {
	s.markNotificationLog(ctx, store, in.NotificationLogID, "clicked_at")
	return s.trackNotification(ctx, store, EventNotificationClick, in)
}

// markNotificationLog ne renseigne la colonne que si elle est encore NULL, les erreurs sont seulement journalisées
func (s *Service) markNotificationLog(ctx context.Context, store *Store, logID *uint, column string) {
	if logID == nil {
		return
	}

	result := store.DB().WithContext(ctx).
		Model(&NotificationLog{}).
		Where("id = ? AND "+column+" IS NULL", *logID).
		Update(column, s.now())
	if result.Error != nil {
		log.Warn().
			Err(result.Error).
			Str("club", store.Name()).
			Uint("notification_log_id", *logID).
			Str("column", column).
			Msg("failed to update notification log")
		return
	}
	if result.RowsAffected == 0 {
		log.Debug().Uint("notification_log_id", *logID).Str("column", column).Msg("notification log absent or already set")
	}
}

func (s *Service) trackNotification(ctx context.Context, dest Destination, eventType string, in NotificationInput) Receipt {
	metadata := map[string]interface{}{
		"campaignId": in.CampaignID,
	}
	if in.NotificationLogID != nil {
		metadata["notificationLogId"] = *in.NotificationLogID
	}
	if in.ButtonType != "" {
		metadata["buttonType"] = in.ButtonType
	}
	if in.TargetModule != "" {
		metadata["targetModule"] = in.TargetModule
	}

	return s.TrackEvent(ctx, dest, TrackInput{
		UserID:    in.UserID,
		EventType: eventType,
		EventName: eventType,
		Category:  "notification",
		Metadata:  metadata,
		Request:   in.Request,
	})
}
