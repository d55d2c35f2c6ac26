package clmiddleware

import (
	"clubpulse/internal/clmetrics"
	"clubpulse/internal/models/clanalytics"
	"clubpulse/internal/models/clclubs"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	KeyClub      = "club"
	KeyRequestID = "request_id"
	KeyActor     = "actor"

	HeaderRequestID = "X-Request-Id"
	HeaderClubID    = "X-Club-Id"
)

func InitMiddleware(r *gin.Engine, registry *clclubs.Registry) {
	r.Use(RequestID())

	// logger
	r.Use(Logger())
	r.Use(Recovery())
	r.Use(clmetrics.Collect())

	// CORS
	r.Use(CORS)

	// get club
	r.Use(ClubId(registry))

	// use Compression, with gzip
	r.Use(gzip.Gzip(gzip.BestSpeed))
}

func CORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Club-Id, X-Platform, X-Request-Id")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

// NewLimiter limite par c.ClientIP(), les en-têtes de proxy ne comptent que pour les proxies de confiance.
// Format "<limite>-<période>" (ex: 600-M)
func NewLimiter(formatted string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit %q invalide: %w", formatted, err)
	}
	mstore := memory.NewStore()
	instance := limiter.New(mstore, rate)
	return ginlimiter.NewMiddleware(instance,
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
		}),
	), nil
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(KeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Traiter la requête
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		var logEvent *zerolog.Event
		switch {
		case statusCode == 404:
			logEvent = log.Debug()
		case statusCode >= 500:
			logEvent = log.Error()
		case statusCode >= 400:
			logEvent = log.Warn()
		default:
			logEvent = log.Info()
		}

		if club := GetClub(c); club != nil {
			logEvent = logEvent.Uint("club", club.Config.Id)
		}
		logEvent.
			Str("request_id", c.GetString(KeyRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("ip", clanalytics.ClientIP(c.Request)).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP Request")

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				log.Error().
					Err(err.Err).
					Str("request_id", c.GetString(KeyRequestID)).
					Str("type", strconv.FormatUint(uint64(err.Type), 10)).
					Msg("Request error")
			}
		}
	}
}

// ClubId en-tête X-Club-Id, sinon nom d'hôte, sinon club 0
func ClubId(registry *clclubs.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Request.Host
		if strings.Contains(host, ":") {
			host = strings.Split(host, ":")[0]
		}

		club := registry.Resolve(c.GetHeader(HeaderClubID), host)
		if club == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "message": "Unknown club"})
			return
		}
		c.Set(KeyClub, club)
		c.Next()
	}
}

func GetClub(c *gin.Context) *clclubs.Club {
	v, ok := c.Get(KeyClub)
	if !ok {
		return nil
	}
	club, _ := v.(*clclubs.Club)
	return club
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("request_id", c.GetString(KeyRequestID)).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
