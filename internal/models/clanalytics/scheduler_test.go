package clanalytics

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestWholeSeconds(t *testing.T) {
	assert.Equal(t, time.Second, wholeSeconds(0))
	assert.Equal(t, time.Second, wholeSeconds(200*time.Millisecond))
	assert.Equal(t, time.Second, wholeSeconds(1500*time.Millisecond))
	assert.Equal(t, 5*time.Second, wholeSeconds(5*time.Second))
}

func TestCronSchedulerWarnsOnAdjustedInterval(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	stop := NewCronScheduler().Every(2500*time.Millisecond, func() {})
	stop()
	assert.Contains(t, buf.String(), "cron interval adjusted to whole seconds")

	buf.Reset()
	stop = NewCronScheduler().Every(3*time.Second, func() {})
	stop()
	assert.Empty(t, buf.String())
}

func TestManualSchedulerTick(t *testing.T) {
	sched := NewManualScheduler()
	runs := 0
	stop := sched.Every(time.Hour, func() { runs++ })
	assert.Equal(t, 1, sched.Active())

	sched.Tick()
	sched.Tick()
	assert.Equal(t, 2, runs)

	stop()
	sched.Tick()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 0, sched.Active())
}
