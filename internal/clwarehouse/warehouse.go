package clwarehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clubpulse/internal/models/clanalytics"
	"clubpulse/internal/models/clconfig"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"
)

const defaultTable = "analytics_events"

// Warehouse copie des événements écrits vers ClickHouse pour les requêtes lourdes
type Warehouse struct {
	conn  clickhouse.Conn
	table string
}

// row colonnes dans l'ordre de la table ClickHouse
type row struct {
	Club       string
	EventID    uint64
	UserID     *uint64
	SessionID  *string
	EventType  string
	EventName  string
	Category   *string
	PagePath   *string
	Platform   *string
	DeviceType *string
	Country    *string
	Metadata   string
	CreatedAt  time.Time
}

func New(cfg clconfig.WarehouseConfig) (*Warehouse, error) {
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "clubpulse", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	w := &Warehouse{conn: conn, table: table}
	if err := w.ensureTable(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Strs("addr", cfg.Addr).Str("table", table).Msg("ClickHouse warehouse connected")
	return w, nil
}

func (w *Warehouse) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			club String,
			event_id UInt64,
			user_id Nullable(UInt64),
			session_id Nullable(String),
			event_type LowCardinality(String),
			event_name String,
			category Nullable(String),
			page_path Nullable(String),
			platform Nullable(String),
			device_type Nullable(String),
			country Nullable(String),
			metadata String,
			created_at DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (club, event_type, created_at)`, w.table)

	if err := w.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create warehouse table: %w", err)
	}
	return nil
}

// MirrorEvents insertion groupée PrepareBatch / Append / Send
func (w *Warehouse) MirrorEvents(ctx context.Context, club string, events []clanalytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			club, event_id, user_id, session_id, event_type, event_name, category,
			page_path, platform, device_type, country, metadata, created_at
		)`, w.table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, ev := range events {
		r := toRow(club, ev)
		err := batch.Append(
			r.Club,
			r.EventID,
			r.UserID,
			r.SessionID,
			r.EventType,
			r.EventName,
			r.Category,
			r.PagePath,
			r.Platform,
			r.DeviceType,
			r.Country,
			r.Metadata,
			r.CreatedAt,
		)
		if err != nil {
			log.Warn().Err(err).Uint64("event_id", ev.ID).Msg("failed to append event to warehouse batch")
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (w *Warehouse) Close() error {
	return w.conn.Close()
}

func toRow(club string, ev clanalytics.Event) row {
	r := row{
		Club:       club,
		EventID:    ev.ID,
		SessionID:  ev.SessionID,
		EventType:  ev.EventType,
		EventName:  ev.EventName,
		Category:   ev.Category,
		PagePath:   ev.PagePath,
		Platform:   ev.Platform,
		DeviceType: ev.DeviceType,
		Country:    ev.Country,
		Metadata:   "{}",
		CreatedAt:  ev.CreatedAt,
	}
	if ev.UserID != nil {
		id := uint64(*ev.UserID)
		r.UserID = &id
	}
	if len(ev.Metadata) > 0 {
		if data, err := json.Marshal(ev.Metadata); err == nil {
			r.Metadata = string(data)
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return r
}
