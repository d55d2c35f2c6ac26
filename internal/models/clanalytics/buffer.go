package clanalytics

import (
	"context"
	"sync"
	"time"

	"clubpulse/internal/clmetrics"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
)

// EntryWriter consomme les entrées retirées de la file
type EntryWriter interface {
	Write(ctx context.Context, entries []Entry) FlushReport
}

type BufferOptions struct {
	Size     int
	Interval time.Duration
}

// BatchBuffer file FIFO en mémoire, vidée par taille ou par minuterie
type BatchBuffer struct {
	writer    EntryWriter
	scheduler Scheduler
	size      int
	interval  time.Duration

	mu      sync.Mutex
	queue   []Entry
	stop    func()
	running bool
}

func NewBatchBuffer(writer EntryWriter, scheduler Scheduler, opts BufferOptions) *BatchBuffer {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchSize
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultFlushInterval
	}
	if scheduler == nil {
		scheduler = NewCronScheduler()
	}

	return &BatchBuffer{
		writer:    writer,
		scheduler: scheduler,
		size:      opts.Size,
		interval:  opts.Interval,
	}
}

// Start démarre la minuterie, sans effet si déjà démarrée
func (b *BatchBuffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}

	b.stop = b.scheduler.Every(b.interval, b.onTick)
	b.running = true
	log.Info().
		Int("batch_size", b.size).
		Dur("flush_interval", b.interval).
		Msg("Batch buffer started")
}

// Stop arrête la minuterie, les entrées restantes ne sont pas écrites
func (b *BatchBuffer) Stop() {
	b.mu.Lock()
	stop := b.stop
	b.stop = nil
	b.running = false
	b.mu.Unlock()

	// hors verrou, le job en cours peut avoir besoin du mutex
	if stop != nil {
		stop()
	}
}

// Enqueue ajoute en queue, si la taille N est atteinte N entrées sont écrites avant le retour
func (b *BatchBuffer) Enqueue(ctx context.Context, entry Entry) {
	b.mu.Lock()
	b.queue = append(b.queue, entry)
	var batch []Entry
	if len(b.queue) >= b.size {
		batch = b.takeLocked(b.size)
	}
	depth := len(b.queue)
	b.mu.Unlock()

	clmetrics.EventQueued(entry.Event.EventType)
	clmetrics.SetQueueDepth(depth)

	if batch != nil {
		// une déconnexion du client ne doit pas annuler un lot qui contient les événements d'autres requêtes
		b.write(context.WithoutCancel(ctx), "size", batch)
	}
}

// Flush écrit au plus N entrées depuis la tête de file, retourne le nombre d'entrées retirées
func (b *BatchBuffer) Flush(ctx context.Context) int {
	return b.flush(ctx, "manual")
}

// Drain vide la file par lots de N
func (b *BatchBuffer) Drain(ctx context.Context) int {
	total := 0
	for {
		n := b.flush(ctx, "drain")
		if n == 0 {
			return total
		}
		total += n
	}
}

// Close arrête la minuterie puis vide la file
func (b *BatchBuffer) Close(ctx context.Context) error {
	b.Stop()
	n := b.Drain(ctx)
	log.Info().Int("events", n).Msg("Batch buffer closed")
	return ctx.Err()
}

func (b *BatchBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *BatchBuffer) onTick() {
	b.flush(context.Background(), "timer")
}

func (b *BatchBuffer) flush(ctx context.Context, trigger string) int {
	b.mu.Lock()
	batch := b.takeLocked(b.size)
	depth := len(b.queue)
	b.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	clmetrics.SetQueueDepth(depth)
	b.write(ctx, trigger, batch)
	return len(batch)
}

// takeLocked retire au plus n entrées en tête, mu doit être tenu
func (b *BatchBuffer) takeLocked(n int) []Entry {
	if len(b.queue) == 0 {
		return nil
	}
	if n > len(b.queue) {
		n = len(b.queue)
	}

	batch := make([]Entry, n)
	copy(batch, b.queue[:n])
	rest := make([]Entry, len(b.queue)-n)
	copy(rest, b.queue[n:])
	b.queue = rest
	return batch
}

func (b *BatchBuffer) write(ctx context.Context, trigger string, batch []Entry) {
	started := time.Now()
	report := b.writer.Write(ctx, batch)
	clmetrics.ObserveFlush(trigger, started)

	log.Debug().
		Str("trigger", trigger).
		Int("groups", report.Groups).
		Int("written", report.Written).
		Int("dropped", report.Dropped).
		Dur("elapsed", time.Since(started)).
		Msg("Batch flushed")
}
