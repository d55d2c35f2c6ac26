package clconfig

import (
	"fmt"
	"log/syslog"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
	DefaultBasePath      = "/api/analytics"
	DefaultRateLimit     = "600-M"
)

type Config struct {
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Logger          LoggerConfig    `yaml:"logger"`
	Auth            AuthConfig      `yaml:"auth"`
	Batch           BatchConfig     `yaml:"batch"`
	RateLimit       string          `yaml:"ratelimit"`
	Redis           RedisConfig     `yaml:"redis"`
	GeoIP           GeoIPConfig     `yaml:"geoip"`
	Warehouse       WarehouseConfig `yaml:"warehouse"`
	Clubs           []ClubConfig    `yaml:"clubs"`
}

type ListenConfig struct {
	Api      string `yaml:"api"`
	Metrics  string `yaml:"metrics"`
	BasePath string `yaml:"basepath"`
}

type AuthConfig struct {
	JwtSecret  string   `yaml:"jwtsecret"`
	AdminRoles []string `yaml:"adminroles"`
}

// BatchConfig pilote le buffer d'ingestion
type BatchConfig struct {
	Size          int    `yaml:"size"`
	FlushInterval string `yaml:"flushinterval"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type GeoIPConfig struct {
	Path string `yaml:"path"`
}

// WarehouseConfig décrit la copie ClickHouse des événements (optionnelle)
type WarehouseConfig struct {
	Enable   bool     `yaml:"enable"`
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Table    string   `yaml:"table"`
}

type ClubConfig struct {
	Id       uint   `yaml:"id"`
	Name     string `yaml:"name"`
	Hostname string `yaml:"hostname"`
	Db       string `yaml:"db"`
	Path     string `yaml:"path"`
	Dsn      string `yaml:"dsn"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

// Interval retourne l'intervalle de flush, avec la valeur par défaut si absent ou invalide
func (b BatchConfig) Interval() time.Duration {
	if b.FlushInterval == "" {
		return DefaultFlushInterval
	}
	d, err := time.ParseDuration(b.FlushInterval)
	if err != nil || d <= 0 {
		log.Warn().Str("flushinterval", b.FlushInterval).Msg("invalid flush interval, using default")
		return DefaultFlushInterval
	}
	// le planificateur cron travaille à la seconde
	if d < time.Second {
		log.Warn().Str("flushinterval", b.FlushInterval).Msg("flush interval below 1s, using 1s")
		return time.Second
	}
	if r := d.Truncate(time.Second); r != d {
		log.Warn().Str("flushinterval", b.FlushInterval).Dur("used", r).Msg("flush interval truncated to whole seconds")
		return r
	}
	return d
}

func (b BatchConfig) BatchSize() int {
	if b.Size <= 0 {
		return DefaultBatchSize
	}
	return b.Size
}

func (a AuthConfig) IsAdminRole(role string) bool {
	roles := a.AdminRoles
	if len(roles) == 0 {
		roles = []string{"admin", "superadmin"}
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Production: false,
		Listen: ListenConfig{
			Api:      "0.0.0.0:8080",
			Metrics:  "127.0.0.1:8090",
			BasePath: DefaultBasePath,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JwtSecret:  "${JWT_SECRET}",
			AdminRoles: []string{"admin", "superadmin"},
		},
		Batch: BatchConfig{
			Size:          DefaultBatchSize,
			FlushInterval: DefaultFlushInterval.String(),
		},
		RateLimit: DefaultRateLimit,
		Clubs: []ClubConfig{
			{
				Id:   0,
				Name: "Club principal",
				Db:   "sqlite",
				Path: "./analytics.db",
			},
		},
	}

	if filename == "/etc/" {
		example.Listen.Api = "127.0.0.1:8000"
		example.Production = true
		example.Clubs[0].Path = "/var/lib/clubpulse/analytics.db"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/clubpulse/clubpulse.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/clubpulse/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// Charger la configuration YAML, les variables ${VAR} sont remplacées par l'environnement
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %v", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate applique les valeurs par défaut et vérifie la cohérence des clubs
func (c *Config) Validate() error {
	if c.Listen.BasePath == "" {
		c.Listen.BasePath = DefaultBasePath
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if len(c.Clubs) == 0 {
		return fmt.Errorf("au moins un club doit etre configuré")
	}

	seen := make(map[uint]bool, len(c.Clubs))
	for _, club := range c.Clubs {
		if seen[club.Id] {
			return fmt.Errorf("l'id %d est utilisé par plusieurs clubs", club.Id)
		}
		seen[club.Id] = true

		switch club.Db {
		case "sqlite":
			if club.Path == "" {
				return fmt.Errorf("le club %d doit avoir un path sqlite", club.Id)
			}
		case "mysql", "postgres":
			if club.Dsn == "" {
				return fmt.Errorf("le club %d doit avoir un dsn %s", club.Id, club.Db)
			}
		default:
			return fmt.Errorf("le club %d: le type de database doit etre sqlite, mysql ou postgres", club.Id)
		}
	}

	if c.Warehouse.Enable && len(c.Warehouse.Addr) == 0 {
		return fmt.Errorf("warehouse activé sans adresse clickhouse")
	}
	return nil
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "clubpulse.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %v", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  Définir JWT_SECRET dans l'environnement ou dans un fichier .env")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Clubpulse version %s", version)
	logPrintf("Mode Production %v", config.Production)

	logPrintf("Ingestion")
	logPrintf("  • Taille de batch %d", config.Batch.BatchSize())
	logPrintf("  • Intervalle de flush %s", config.Batch.Interval())
	logPrintf("  • Rate limit %s", config.RateLimit)

	if config.Redis.Addr != "" {
		logPrintf("  • Compteurs temps réel redis %s", config.Redis.Addr)
	} else {
		logPrintf("  • Compteurs temps réel désactivés")
	}
	if config.GeoIP.Path != "" {
		logPrintf("  • GeoIP %s", config.GeoIP.Path)
	}
	if config.Warehouse.Enable {
		logPrintf("  • Entrepôt clickhouse %v (base %s)", config.Warehouse.Addr, config.Warehouse.Database)
	}

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
		logPrintf("  • Compression %v", config.Logger.File.Compress)
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	}

	logPrintf("Liste des clubs")
	for _, club := range config.Clubs {
		logPrintf("  • \"%s\" avec l'id %d, hostname %s, base %s", club.Name, club.Id, club.Hostname, club.Db)
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
