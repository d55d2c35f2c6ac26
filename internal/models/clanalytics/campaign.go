package clanalytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

const trendDays = 7

var ErrCampaignNotFound = errors.New("campaign not found")

type CampaignMetrics struct {
	TotalSent        int64   `json:"totalSent"`
	TotalOpened      int64   `json:"totalOpened"`
	TotalClicked     int64   `json:"totalClicked"`
	OpenRate         float64 `json:"openRate"`
	ClickRate        float64 `json:"clickRate"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type CampaignTrends struct {
	Opens  []DayCount `json:"opens"`
	Clicks []DayCount `json:"clicks"`
}

type CampaignAnalytics struct {
	Campaign Campaign        `json:"campaign"`
	Metrics  CampaignMetrics `json:"metrics"`
	Trends   CampaignTrends  `json:"trends"`
}

// GetCampaignAnalytics totaux, taux en pourcentage et tendance quotidienne sur 7 jours
func (s *Service) GetCampaignAnalytics(ctx context.Context, store *Store, campaignID uint) (*CampaignAnalytics, error) {
	db := store.DB().WithContext(ctx)

	var campaign Campaign
	if err := db.First(&campaign, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("campaign %d: %w", campaignID, ErrCampaignNotFound)
		}
		return nil, fmt.Errorf("error loading campaign: %w", err)
	}

	logs := func() *gorm.DB {
		return db.Model(&NotificationLog{}).Where("campaign_id = ?", campaignID)
	}

	var metrics CampaignMetrics
	if err := logs().Count(&metrics.TotalSent).Error; err != nil {
		return nil, fmt.Errorf("error counting sent notifications: %w", err)
	}
	if err := logs().Where("opened_at IS NOT NULL").Count(&metrics.TotalOpened).Error; err != nil {
		return nil, fmt.Errorf("error counting opened notifications: %w", err)
	}
	if err := logs().Where("clicked_at IS NOT NULL").Count(&metrics.TotalClicked).Error; err != nil {
		return nil, fmt.Errorf("error counting clicked notifications: %w", err)
	}
	metrics.OpenRate = percent(metrics.TotalOpened, metrics.TotalSent)
	metrics.ClickRate = percent(metrics.TotalClicked, metrics.TotalSent)
	metrics.ClickThroughRate = percent(metrics.TotalClicked, metrics.TotalOpened)

	since := s.now().AddDate(0, 0, -trendDays)
	opens, err := dailyCounts(logs(), "opened_at", since)
	if err != nil {
		return nil, fmt.Errorf("error getting open trend: %w", err)
	}
	clicks, err := dailyCounts(logs(), "clicked_at", since)
	if err != nil {
		return nil, fmt.Errorf("error getting click trend: %w", err)
	}

	return &CampaignAnalytics{
		Campaign: campaign,
		Metrics:  metrics,
		Trends:   CampaignTrends{Opens: opens, Clicks: clicks},
	}, nil
}

// dailyCounts column est une constante interne, jamais une entrée utilisateur
func dailyCounts(query *gorm.DB, column string, since time.Time) ([]DayCount, error) {
	counts := []DayCount{}
	err := query.
		Select("DATE("+column+") as date, COUNT(*) as count").
		Where(column+" >= ?", since).
		Group("DATE(" + column + ")").
		Order("date DESC").
		Scan(&counts).Error
	return counts, err
}

// percent arrondi à deux décimales, 0 si le dénominateur est nul
func percent(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*10000) / 100
}
