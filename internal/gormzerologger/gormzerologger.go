package gormzerologger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxSQLLength les INSERT par lot embarquent toutes les valeurs
const maxSQLLength = 512

type GormZerologger struct {
	Logger                    zerolog.Logger
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// New adapte base (en général cllog.ForClub) à l'interface logger de GORM
func New(logLevel string, base zerolog.Logger) *GormZerologger {
	return &GormZerologger{
		Logger:                    base.With().Str("component", "gorm").Logger(),
		LogLevel:                  parseGormLogLevel(logLevel),
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func parseGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "debug", "trace", "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

func (l *GormZerologger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormZerologger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info().Msgf(msg, data...)
	}
}

func (l *GormZerologger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn().Msgf(msg, data...)
	}
}

func (l *GormZerologger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error().Msgf(msg, data...)
	}
}

// Trace fc n'est appelé que si la requête est effectivement journalisée
func (l *GormZerologger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	var event *zerolog.Event
	var msg string
	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		event, msg = l.Logger.Error().Err(err), "database query error"
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= logger.Warn:
		event, msg = l.Logger.Warn().Dur("threshold", l.SlowThreshold), "slow database query"
	case l.LogLevel >= logger.Info:
		event, msg = l.Logger.Debug(), "database query"
	default:
		return
	}
	if !event.Enabled() {
		return
	}

	sql, rows := fc()
	event.
		Dur("elapsed_ms", elapsed).
		Int64("rows", rows).
		Str("sql", truncateSQL(sql)).
		Msg(msg)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	return sql[:maxSQLLength] + "... (" + strconv.Itoa(len(sql)-maxSQLLength) + " bytes truncated)"
}
