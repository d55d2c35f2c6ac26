package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clubpulse/internal/clgeo"
	"clubpulse/internal/clmiddleware"
	"clubpulse/internal/clredis"
	"clubpulse/internal/clwarehouse"
	handlers_analytics "clubpulse/internal/handlers/analytics"
	"clubpulse/internal/models/clanalytics"
	"clubpulse/internal/models/clclubs"
	"clubpulse/internal/models/clconfig"
	"clubpulse/internal/models/cllog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const VERSION string = "1.0.0"

const shutdownTimeout = 15 * time.Second

var BuildID string

// app composants partagés du processus
type app struct {
	config    *clconfig.Config
	registry  *clclubs.Registry
	buffer    *clanalytics.BatchBuffer
	service   *clanalytics.Service
	redis     *redis.Client
	warehouse *clwarehouse.Warehouse
	geo       *clgeo.Resolver
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return "", true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func initConfiguration() *clconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  clubpulse -config clubpulse.yaml")
		fmt.Println("  clubpulse -example  (pour créer un fichier exemple)")
		fmt.Println("  clubpulse -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	clconfig.CreateExample(shouldCreateExample, configFile)

	// .env optionnel, pour JWT_SECRET et les DSN
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("❌ .env: %v\n", err)
		os.Exit(1)
	}

	conf, err := clconfig.LoadConfig(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf
}

// newApp ouvre les bases et les adaptateurs optionnels, scheduler nil pour cron
func newApp(conf *clconfig.Config, version string, scheduler clanalytics.Scheduler) (*app, error) {
	registry, err := clclubs.Init(conf, version)
	if err != nil {
		return nil, err
	}
	a := &app{config: conf, registry: registry}

	var writerOpts []clanalytics.WriterOption
	var serviceOpts []clanalytics.ServiceOption

	if conf.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: conf.Redis.Addr, DB: conf.Redis.Db})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", conf.Redis.Addr).Msg("redis unreachable, realtime counters will retry")
		}
		cancel()
		realtime := clredis.New(a.redis)
		writerOpts = append(writerOpts, clanalytics.WithRealtime(realtime))
		serviceOpts = append(serviceOpts, clanalytics.WithRealtimeReader(realtime))
	}

	if conf.Warehouse.Enable {
		a.warehouse, err = clwarehouse.New(conf.Warehouse)
		if err != nil {
			a.close()
			return nil, err
		}
		writerOpts = append(writerOpts, clanalytics.WithMirror(a.warehouse))
	}

	if conf.GeoIP.Path != "" {
		a.geo, err = clgeo.Open(conf.GeoIP.Path)
		if err != nil {
			a.close()
			return nil, err
		}
		serviceOpts = append(serviceOpts, clanalytics.WithCountryResolver(a.geo))
	}

	if scheduler == nil {
		scheduler = clanalytics.NewCronScheduler()
	}
	a.buffer = clanalytics.NewBatchBuffer(clanalytics.NewBatchWriter(writerOpts...), scheduler, clanalytics.BufferOptions{
		Size:     conf.Batch.BatchSize(),
		Interval: conf.Batch.Interval(),
	})
	a.service = clanalytics.NewService(a.buffer, serviceOpts...)
	return a, nil
}

func newServer(conf *clconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// sans liste, aucun proxy n'est de confiance et X-Forwarded-For est ignoré par ClientIP
	if err := r.SetTrustedProxies(conf.TrustedProxies); err != nil {
		log.Warn().Err(err).Msg("invalid trusted proxies")
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}
	return r
}

func (a *app) setRoutes(r *gin.Engine) error {
	clmiddleware.InitMiddleware(r, a.registry)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "version": VERSION, "queued": a.buffer.Len()})
	})

	limit, err := clmiddleware.NewLimiter(a.config.RateLimit)
	if err != nil {
		return err
	}

	handler := handlers_analytics.NewAnalyticsHandler(a.service)
	handler.RegisterRoutes(r.Group(a.config.Listen.BasePath), a.config.Auth, limit)
	return nil
}

// close vide la file puis libère les connexions, dans cet ordre
func (a *app) close() {
	if a.buffer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.buffer.Close(ctx); err != nil {
			log.Error().Err(err).Int("remaining", a.buffer.Len()).Msg("buffer not fully drained")
		}
		cancel()
	}
	if a.warehouse != nil {
		if err := a.warehouse.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close warehouse")
		}
	}
	if a.geo != nil {
		if err := a.geo.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close geoip database")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	a.registry.Close()
}

func startMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Info().Msgf("Metrics disponible sur http://%s/metrics", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

func (a *app) run(ctx context.Context, r *gin.Engine) error {
	var metrics *http.Server
	if a.config.Listen.Metrics != "" {
		metrics = startMetrics(a.config.Listen.Metrics)
	}

	srv := &http.Server{Addr: a.config.Listen.Api, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("API démarrée sur http://%s%s", a.config.Listen.Api, a.config.Listen.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Arrêt demandé")
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("api shutdown")
	}
	if metrics != nil {
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
	}
	return runErr
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf := initConfiguration()
	cllog.InitLogger(conf.Logger, conf.Production)
	clconfig.DisplayConfiguration(conf, BuildID)

	a, err := newApp(conf, BuildID, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation impossible")
	}

	r := newServer(conf)
	if err := a.setRoutes(r); err != nil {
		a.close()
		log.Fatal().Err(err).Msg("routes")
	}

	a.buffer.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.run(ctx, r)
	stop()
	a.close()
	if err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("Arrêt terminé")
}
