package gormzerologger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, parseGormLogLevel("trace"))
	assert.Equal(t, logger.Warn, parseGormLogLevel("warn"))
	assert.Equal(t, logger.Error, parseGormLogLevel("error"))
	assert.Equal(t, logger.Silent, parseGormLogLevel("silent"))
	assert.Equal(t, logger.Warn, parseGormLogLevel(""))
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	l := New("error", zerolog.New(&buf).With().Str("club", "club-1").Logger())

	sql := func() (string, int64) { return "INSERT INTO analytics_events", 3 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), sql, errors.New("disk full"))
	assert.Contains(t, buf.String(), "database query error")
	assert.Contains(t, buf.String(), `"club":"club-1"`)
	assert.Contains(t, buf.String(), `"component":"gorm"`)
	assert.Contains(t, buf.String(), `"rows":3`)

	buf.Reset()
	silent := l.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), sql, errors.New("disk full"))
	assert.Empty(t, buf.String())
}

func TestTraceSkipsSQLWhenNotLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", zerolog.New(&buf))

	called := false
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)

	assert.False(t, called)
	assert.Empty(t, buf.String())
}

func TestTraceTruncatesBatchInsert(t *testing.T) {
	var buf bytes.Buffer
	l := New("error", zerolog.New(&buf))

	long := "INSERT INTO analytics_events VALUES " + strings.Repeat("(1,'click'),", 200)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return long, 200 }, errors.New("locked"))

	assert.Contains(t, buf.String(), "bytes truncated")
	assert.Less(t, buf.Len(), len(long))
}

func TestTruncateSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", truncateSQL("SELECT 1"))

	long := strings.Repeat("x", maxSQLLength+10)
	assert.Equal(t, strings.Repeat("x", maxSQLLength)+"... (10 bytes truncated)", truncateSQL(long))
}
