package cllog

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clubpulse/internal/models/clconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const appName = "clubpulse"

// InitLogger installe le logger global, fatal si une sortie ne peut pas être ouverte
func InitLogger(cfg clconfig.LoggerConfig, production bool) {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return path.Join(path.Base(path.Dir(file)), path.Base(file)) + ":" + strconv.Itoa(line)
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	logger, err := New(cfg, production)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	log.Logger = logger

	environment := "development"
	if production {
		environment = "production"
	}
	log.Info().
		Str("environment", environment).
		Str("level", parseLevel(cfg.Level).String()).
		Bool("log_to_file", cfg.File.Enable).
		Bool("log_to_syslog", cfg.Syslog.Enable).
		Msg("Logger initialized")
}

// New construit un logger sur les sorties configurées, stdout si aucune
func New(cfg clconfig.LoggerConfig, production bool) (zerolog.Logger, error) {
	var writers []io.Writer

	if !production {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	if cfg.File.Enable {
		fileWriter, err := setupFileWriter(cfg.File)
		if err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, fileWriter)
	}

	if cfg.Syslog.Enable {
		syslogWriter, err := setupSyslogWriter(cfg.Syslog)
		if err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, syslogWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", appName).
		Caller().
		Logger(), nil
}

// ForClub logger global enrichi du champ club
func ForClub(club string) zerolog.Logger {
	return log.Logger.With().Str("club", club).Logger()
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel || l > zerolog.ErrorLevel {
		return zerolog.InfoLevel
	}
	return l
}

func setupFileWriter(cfg clconfig.LoggerFileConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

// setupSyslogWriter la priorité de chaque ligne suit son niveau zerolog
func setupSyslogWriter(cfg clconfig.LoggerSyslogConfig) (io.Writer, error) {
	tag := cfg.Tag
	if tag == "" {
		tag = appName
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = syslog.LOG_INFO | syslog.LOG_LOCAL0
	}

	var writer *syslog.Writer
	var err error

	// socket unix locale si aucune adresse distante
	if cfg.Protocol == "" || cfg.Address == "" {
		writer, err = syslog.New(priority, tag)
	} else {
		writer, err = syslog.Dial(cfg.Protocol, cfg.Address, priority, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}

	return zerolog.SyslogLevelWriter(writer), nil
}
