package clanalytics

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Destination stockage cible d'un groupe d'événements, identifié par son nom
type Destination interface {
	Name() string
	InsertEvents(ctx context.Context, events []Event) error
}

// Store base de données d'un club
type Store struct {
	name string
	db   *gorm.DB
}

func NewStore(name string, db *gorm.DB) *Store {
	return &Store{name: name, db: db}
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// InsertEvents insertion groupée, les doublons en conflit sont ignorés
func (s *Store) InsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&events).Error
	if err != nil {
		return fmt.Errorf("error inserting %d events into %s: %w", len(events), s.name, err)
	}
	return nil
}
