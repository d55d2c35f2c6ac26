package clanalytics

import (
	"context"
	"fmt"
	"time"

	"clubpulse/internal/clmetrics"
	"clubpulse/internal/models/cllog"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// unknownDestination libellé des métriques pour les entrées sans destination
const unknownDestination = "unknown"

// Entry association transitoire destination / événement
type Entry struct {
	Destination Destination
	Event       Event
}

// Mirror copie secondaire des événements écrits (entrepôt analytique)
type Mirror interface {
	MirrorEvents(ctx context.Context, destination string, events []Event) error
}

// RealtimeRecorder compteurs du jour alimentés après chaque écriture réussie
type RealtimeRecorder interface {
	RecordEvents(ctx context.Context, destination string, events []Event) error
	TodayCounts(ctx context.Context, destination string, day time.Time) (*RealtimeStats, error)
}

// FlushReport bilan d'une écriture, jamais remonté à l'appelant HTTP
type FlushReport struct {
	Groups  int
	Written int
	Dropped int
}

type group struct {
	destination Destination
	events      []Event
}

// BatchWriter regroupe par destination et écrit chaque groupe indépendamment
type BatchWriter struct {
	mirror   Mirror
	realtime RealtimeRecorder
}

type WriterOption func(*BatchWriter)

func WithMirror(m Mirror) WriterOption {
	return func(w *BatchWriter) { w.mirror = m }
}

func WithRealtime(r RealtimeRecorder) WriterOption {
	return func(w *BatchWriter) { w.realtime = r }
}

func NewBatchWriter(opts ...WriterOption) *BatchWriter {
	w := &BatchWriter{}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write un échec ou une panique sur un groupe n'affecte pas les autres, les événements perdus ne sont pas remis en file
func (w *BatchWriter) Write(ctx context.Context, entries []Entry) FlushReport {
	groups, orphans := groupByDestination(entries)
	report := FlushReport{Groups: len(groups), Dropped: orphans}

	if orphans > 0 {
		log.Error().Int("events", orphans).Msg("events without destination dropped")
		clmetrics.EventsDropped(unknownDestination, orphans)
	}

	for _, g := range groups {
		name := g.destination.Name()
		logger := cllog.ForClub(name)
		if err := w.writeGroup(ctx, g); err != nil {
			logger.Error().
				Err(err).
				Int("events", len(g.events)).
				Msg("batch write failed, events dropped")
			clmetrics.EventsDropped(name, len(g.events))
			report.Dropped += len(g.events)
			continue
		}

		clmetrics.EventsFlushed(name, len(g.events))
		report.Written += len(g.events)
		w.afterWrite(ctx, logger, name, g.events)
	}

	return report
}

// groupByDestination conserve l'ordre de première apparition et l'ordre FIFO dans chaque groupe,
// orphans compte les entrées sans destination
func groupByDestination(entries []Entry) (groups []*group, orphans int) {
	index := make(map[string]*group)

	for _, e := range entries {
		if e.Destination == nil {
			orphans++
			continue
		}
		name := e.Destination.Name()
		g, ok := index[name]
		if !ok {
			g = &group{destination: e.Destination}
			index[name] = g
			groups = append(groups, g)
		}
		g.events = append(g.events, e.Event)
	}
	return groups, orphans
}

func (w *BatchWriter) writeGroup(ctx context.Context, g *group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while writing events: %v", r)
		}
	}()
	return g.destination.InsertEvents(ctx, g.events)
}

func (w *BatchWriter) afterWrite(ctx context.Context, logger zerolog.Logger, name string, events []Event) {
	if w.mirror != nil {
		if err := w.mirror.MirrorEvents(ctx, name, events); err != nil {
			logger.Warn().Err(err).Msg("warehouse mirror failed")
		}
	}
	if w.realtime != nil {
		if err := w.realtime.RecordEvents(ctx, name, events); err != nil {
			logger.Warn().Err(err).Msg("realtime counters update failed")
		}
	}
}
