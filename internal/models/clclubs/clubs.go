package clclubs

import (
	"clubpulse/internal/gormzerologger"
	"clubpulse/internal/models/clanalytics"
	"clubpulse/internal/models/clconfig"
	"clubpulse/internal/models/cllog"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Club un tenant et sa base analytique
type Club struct {
	Config clconfig.ClubConfig
	Store  *clanalytics.Store
}

// Registry clubs connus, indexés par id et par nom d'hôte
type Registry struct {
	Clubs   map[uint]*Club
	Hosts   map[string]uint
	Version string
}

func Init(config *clconfig.Config, version string) (*Registry, error) {
	reg := &Registry{
		Clubs:   make(map[uint]*Club, len(config.Clubs)),
		Hosts:   make(map[string]uint, len(config.Clubs)),
		Version: version,
	}

	level := "warn"
	if config.Logger.Level == "debug" || !config.Production {
		level = "trace"
	}

	var idfound []uint
	for _, item := range config.Clubs {
		if slices.Contains(idfound, item.Id) {
			reg.Close()
			return nil, fmt.Errorf("l'id dans les clubs doit etre unique")
		}
		idfound = append(idfound, item.Id)

		db, err := OpenDatabase(item, level)
		if err != nil {
			reg.Close()
			return nil, err
		}
		reg.Add(item, db)
	}
	return reg, nil
}

// OpenDatabase connexion et migration de la base d'un club
func OpenDatabase(item clconfig.ClubConfig, level string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:                                   gormzerologger.New(level, cllog.ForClub(StoreName(item.Id))),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var db *gorm.DB
	var err error
	switch item.Db {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(item.Path), gormConfig)
	case "mysql":
		db, err = gorm.Open(mysql.Open(item.Dsn), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(item.Dsn), gormConfig)
	default:
		err = fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}
	if err != nil {
		return nil, fmt.Errorf("club %d: erreur connexion base de données: %w", item.Id, err)
	}

	if item.Db == "sqlite" {
		// sqlite n'accepte qu'un écrivain à la fois
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.AutoMigrate(clanalytics.Models()...); err != nil {
		return nil, fmt.Errorf("club %d: erreur migration: %w", item.Id, err)
	}
	return db, nil
}

// Add enregistre un club sur une base déjà ouverte
func (r *Registry) Add(item clconfig.ClubConfig, db *gorm.DB) *Club {
	club := &Club{
		Config: item,
		Store:  clanalytics.NewStore(StoreName(item.Id), db),
	}
	r.Clubs[item.Id] = club
	if item.Hostname != "" {
		r.Hosts[strings.ToLower(item.Hostname)] = item.Id
	}
	log.Info().Uint("club", item.Id).Str("name", item.Name).Str("db", item.Db).Msg("Club registered")
	return club
}

func StoreName(id uint) string {
	return "club-" + strconv.FormatUint(uint64(id), 10)
}

// Resolve en-tête X-Club-Id, sinon nom d'hôte, sinon club 0
func (r *Registry) Resolve(header string, host string) *Club {
	if header != "" {
		if id, err := strconv.ParseUint(strings.TrimSpace(header), 10, 64); err == nil {
			if club, ok := r.Clubs[uint(id)]; ok {
				return club
			}
		}
	}

	if host != "" {
		if id, ok := r.Hosts[strings.ToLower(host)]; ok {
			return r.Clubs[id]
		}
	}

	if club, ok := r.Clubs[0]; ok {
		return club
	}
	return nil
}

func (r *Registry) Close() {
	for id, club := range r.Clubs {
		if sqlDB, err := club.Store.DB().DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn().Err(err).Uint("club", id).Msg("failed to close club database")
			}
		}
	}
}
