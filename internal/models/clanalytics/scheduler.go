package clanalytics

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler exécute fn périodiquement, stop arrête le déclenchement et attend la fin du job en cours
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// CronScheduler s'appuie sur robfig/cron, la précision minimale est la seconde
type CronScheduler struct{}

func NewCronScheduler() *CronScheduler {
	return &CronScheduler{}
}

// Every les intervalles sont ramenés à la seconde entière, minimum 1s
func (CronScheduler) Every(interval time.Duration, fn func()) func() {
	if adjusted := wholeSeconds(interval); adjusted != interval {
		log.Warn().Dur("requested", interval).Dur("used", adjusted).Msg("cron interval adjusted to whole seconds")
		interval = adjusted
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(interval), cron.FuncJob(fn))
	c.Start()

	return func() {
		<-c.Stop().Done()
	}
}

func wholeSeconds(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d.Truncate(time.Second)
}

// ManualScheduler déclenche les jobs à la demande via Tick
type ManualScheduler struct {
	mu   sync.Mutex
	jobs map[int]func()
	next int
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{jobs: make(map[int]func())}
}

func (m *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.jobs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.jobs, id)
		m.mu.Unlock()
	}
}

// Tick exécute une fois chaque job enregistré
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	jobs := make([]func(), 0, len(m.jobs))
	for _, fn := range m.jobs {
		jobs = append(jobs, fn)
	}
	m.mu.Unlock()

	for _, fn := range jobs {
		fn()
	}
}

// Active nombre de jobs enregistrés
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
