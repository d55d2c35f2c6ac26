package clredis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"clubpulse/internal/models/clanalytics"

	"github.com/redis/go-redis/v9"
)

const (
	totalField = "_total"
	dayLayout  = "2006-01-02"
)

// RealtimeStore compteurs journaliers par club dans Redis
type RealtimeStore struct {
	client     *redis.Client
	expiration time.Duration
}

func New(client *redis.Client) *RealtimeStore {
	return &RealtimeStore{
		client:     client,
		expiration: 31 * 24 * time.Hour,
	}
}

func dailyKey(club, day string) string {
	return fmt.Sprintf("analytics:daily:%s:%s", club, day)
}

func actorsKey(club, day string) string {
	return fmt.Sprintf("analytics:actors:%s:%s", club, day)
}

// RecordEvents un seul aller-retour via pipeline
func (r *RealtimeStore) RecordEvents(ctx context.Context, club string, events []clanalytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	touched := make(map[string]bool)
	pipe := r.client.Pipeline()
	for _, ev := range events {
		day := ev.CreatedAt.Format(dayLayout)
		if ev.CreatedAt.IsZero() {
			day = time.Now().Format(dayLayout)
		}

		key := dailyKey(club, day)
		pipe.HIncrBy(ctx, key, ev.EventType, 1)
		pipe.HIncrBy(ctx, key, totalField, 1)
		touched[key] = true

		if ev.UserID != nil {
			akey := actorsKey(club, day)
			pipe.SAdd(ctx, akey, strconv.FormatUint(uint64(*ev.UserID), 10))
			touched[akey] = true
		}
	}
	for key := range touched {
		pipe.Expire(ctx, key, r.expiration)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error updating realtime counters: %w", err)
	}
	return nil
}

func (r *RealtimeStore) TodayCounts(ctx context.Context, club string, now time.Time) (*clanalytics.RealtimeStats, error) {
	day := now.Format(dayLayout)
	stats := &clanalytics.RealtimeStats{Date: day, EventsByType: map[string]int64{}}

	fields, err := r.client.HGetAll(ctx, dailyKey(club, day)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	for field, value := range fields {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		if field == totalField {
			stats.TotalEvents = n
			continue
		}
		stats.EventsByType[field] = n
	}

	uniqueUsers, err := r.client.SCard(ctx, actorsKey(club, day)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	stats.UniqueUsers = uniqueUsers

	return stats, nil
}
