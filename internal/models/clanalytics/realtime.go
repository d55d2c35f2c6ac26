package clanalytics

import (
	"context"
	"errors"
)

var ErrRealtimeDisabled = errors.New("realtime counters are not configured")

// RealtimeStats compteurs du jour pour un club
type RealtimeStats struct {
	Date         string           `json:"date"`
	TotalEvents  int64            `json:"totalEvents"`
	UniqueUsers  int64            `json:"uniqueUsers"`
	EventsByType map[string]int64 `json:"eventsByType"`
}

func (s *Service) GetRealtimeStats(ctx context.Context, club string) (*RealtimeStats, error) {
	if s.realtime == nil {
		return nil, ErrRealtimeDisabled
	}
	return s.realtime.TodayCounts(ctx, club, s.now())
}
