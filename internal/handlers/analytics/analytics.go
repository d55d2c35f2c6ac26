package handlers_analytics

import (
	"clubpulse/internal/clmiddleware"
	"clubpulse/internal/models/clanalytics"
	"clubpulse/internal/models/clclubs"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type AnalyticsHandler struct {
	service *clanalytics.Service
}

func NewAnalyticsHandler(service *clanalytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

type trackEventRequest struct {
	SessionID string                 `json:"sessionId"`
	EventType string                 `json:"eventType" binding:"required"`
	EventName string                 `json:"eventName" binding:"required"`
	Category  string                 `json:"category"`
	PagePath  string                 `json:"pagePath"`
	PageTitle string                 `json:"pageTitle"`
	Referrer  string                 `json:"referrer"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type pageViewRequest struct {
	SessionID string `json:"sessionId"`
	PagePath  string `json:"pagePath" binding:"required"`
	PageTitle string `json:"pageTitle"`
	Referrer  string `json:"referrer"`
}

type clickRequest struct {
	SessionID    string                 `json:"sessionId"`
	ElementID    string                 `json:"elementId"`
	ElementText  string                 `json:"elementText"`
	ElementClass string                 `json:"elementClass"`
	PagePath     string                 `json:"pagePath"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type sessionRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
}

type notificationRequest struct {
	CampaignID        uint   `json:"campaignId" binding:"required"`
	NotificationLogID *uint  `json:"notificationLogId"`
	ButtonType        string `json:"buttonType"`
	TargetModule      string `json:"targetModule"`
}

type statsQuery struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	UserID    *uint  `form:"userId"`
	EventType string `form:"eventType"`
	EventName string `form:"eventName"`
	Category  string `form:"category"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func serverError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": message, "error": err.Error()})
}

func club(c *gin.Context) *clclubs.Club {
	return clmiddleware.GetClub(c)
}

// TrackEvent POST /events
func (ah *AnalyticsHandler) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "eventType and eventName are required")
		return
	}

	receipt := ah.service.TrackEvent(c.Request.Context(), club(c).Store, clanalytics.TrackInput{
		UserID:    clmiddleware.ActorID(c),
		SessionID: req.SessionID,
		EventType: req.EventType,
		EventName: req.EventName,
		Category:  req.Category,
		PagePath:  req.PagePath,
		PageTitle: req.PageTitle,
		Referrer:  req.Referrer,
		Metadata:  req.Metadata,
		Request:   c.Request,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event tracked", "data": receipt})
}

// TrackPageView POST /pageview
func (ah *AnalyticsHandler) TrackPageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pagePath is required")
		return
	}

	ah.service.TrackPageView(c.Request.Context(), club(c).Store, clanalytics.PageViewInput{
		UserID:    clmiddleware.ActorID(c),
		SessionID: req.SessionID,
		PagePath:  req.PagePath,
		PageTitle: req.PageTitle,
		Referrer:  req.Referrer,
		Request:   c.Request,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Page view tracked"})
}

// TrackClick POST /click
func (ah *AnalyticsHandler) TrackClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ah.service.TrackClick(c.Request.Context(), club(c).Store, clanalytics.ClickInput{
		UserID:       clmiddleware.ActorID(c),
		SessionID:    req.SessionID,
		ElementID:    req.ElementID,
		ElementText:  req.ElementText,
		ElementClass: req.ElementClass,
		PagePath:     req.PagePath,
		Metadata:     req.Metadata,
		Request:      c.Request,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Click tracked"})
}

// UpdateSession POST /session
func (ah *AnalyticsHandler) UpdateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sessionToken is required")
		return
	}

	session, err := ah.service.CreateOrUpdateSession(c.Request.Context(), club(c).Store, clanalytics.SessionInput{
		UserID:       clmiddleware.ActorID(c),
		SessionToken: req.SessionToken,
		Request:      c.Request,
	})
	if err != nil {
		serverError(c, "Failed to update session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session updated", "data": session})
}

// TrackNotificationOpen POST /notification/open
func (ah *AnalyticsHandler) TrackNotificationOpen(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "campaignId is required")
		return
	}

	ah.service.TrackNotificationOpen(c.Request.Context(), club(c).Store, notificationInput(c, req))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification open tracked"})
}

// TrackNotificationClick POST /notification/click
func (ah *AnalyticsHandler) TrackNotificationClick(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "campaignId is required")
		return
	}

	ah.service.TrackNotificationClick(c.Request.Context(), club(c).Store, notificationInput(c, req))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification click tracked"})
}

func notificationInput(c *gin.Context, req notificationRequest) clanalytics.NotificationInput {
	return clanalytics.NotificationInput{
		UserID:            clmiddleware.ActorID(c),
		CampaignID:        req.CampaignID,
		NotificationLogID: req.NotificationLogID,
		ButtonType:        req.ButtonType,
		TargetModule:      req.TargetModule,
		Request:           c.Request,
	}
}

// GetStats GET /stats
func (ah *AnalyticsHandler) GetStats(c *gin.Context) {
	_, filter, ok := bindStatsQuery(c)
	if !ok {
		return
	}

	stats, err := ah.service.GetStats(c.Request.Context(), club(c).Store, filter)
	if err != nil {
		serverError(c, "Failed to retrieve analytics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// ListEvents GET /events
func (ah *AnalyticsHandler) ListEvents(c *gin.Context) {
	query, filter, ok := bindStatsQuery(c)
	if !ok {
		return
	}

	page, err := ah.service.ListEvents(c.Request.Context(), club(c).Store, clanalytics.EventListFilter{
		StatsFilter: filter,
		EventName:   query.EventName,
		Category:    query.Category,
		Page:        query.Page,
		Limit:       query.Limit,
	})
	if err != nil {
		serverError(c, "Failed to retrieve events", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": page.Events, "pagination": page.Pagination})
}

// ListSessions GET /sessions
func (ah *AnalyticsHandler) ListSessions(c *gin.Context) {
	query, filter, ok := bindStatsQuery(c)
	if !ok {
		return
	}

	page, err := ah.service.ListSessions(c.Request.Context(), club(c).Store, clanalytics.SessionListFilter{
		Start:  filter.Start,
		End:    filter.End,
		UserID: filter.UserID,
		Page:   query.Page,
		Limit:  query.Limit,
	})
	if err != nil {
		serverError(c, "Failed to retrieve sessions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": page.Sessions, "pagination": page.Pagination})
}

// GetCampaignAnalytics GET /campaigns/:campaignId
func (ah *AnalyticsHandler) GetCampaignAnalytics(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("campaignId"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid campaignId")
		return
	}

	analytics, err := ah.service.GetCampaignAnalytics(c.Request.Context(), club(c).Store, uint(id))
	if errors.Is(err, clanalytics.ErrCampaignNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Campaign not found"})
		return
	}
	if err != nil {
		serverError(c, "Failed to retrieve campaign analytics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": analytics})
}

// GetRealtimeStats GET /realtime
func (ah *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	stats, err := ah.service.GetRealtimeStats(c.Request.Context(), club(c).Store.Name())
	if errors.Is(err, clanalytics.ErrRealtimeDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Realtime stats are disabled"})
		return
	}
	if err != nil {
		serverError(c, "Failed to retrieve realtime stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func bindStatsQuery(c *gin.Context) (statsQuery, clanalytics.StatsFilter, bool) {
	var query statsQuery
	var filter clanalytics.StatsFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query parameters")
		return query, filter, false
	}

	start, err := parseDate(query.StartDate, false)
	if err != nil {
		badRequest(c, err.Error())
		return query, filter, false
	}
	end, err := parseDate(query.EndDate, true)
	if err != nil {
		badRequest(c, err.Error())
		return query, filter, false
	}
	if start != nil && end != nil && end.Before(*start) {
		badRequest(c, "endDate must be after startDate")
		return query, filter, false
	}

	filter = clanalytics.StatsFilter{
		Start:     start,
		End:       end,
		UserID:    query.UserID,
		EventType: query.EventType,
	}
	return query, filter, true
}

// parseDate RFC3339 ou YYYY-MM-DD, une date seule en borne haute couvre toute la journée
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected RFC3339 or YYYY-MM-DD", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
