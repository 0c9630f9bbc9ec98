package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/api"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/auth"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/cache"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/config"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/export"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/outbox"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/persistence/memory"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/persistence/postgres"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
	httptransport "github.com/SyahrulApr86/Weekly-Schedules/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo       domain.Repository
		dispatcher *outbox.Dispatcher
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	default:
		log.Printf("using in-memory store; schedules are lost on restart")
		repo = memory.NewRepository()
	}

	var layouts cache.LayoutStore
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to configure redis: %v", err)
		}
		defer client.Close()
		layouts = cache.NewRedisLayoutStore(client, cfg.LayoutCacheTTL)
	}

	service := domain.NewService(repo, layouts, domain.WithLayoutDefaults(cfg.LayoutDefaults()))

	theme := render.DefaultTheme()
	if cfg.ThemePath != "" {
		if theme, err = render.LoadTheme(cfg.ThemePath); err != nil {
			log.Fatalf("failed to load theme: %v", err)
		}
	}
	opts := []api.Option{api.WithTheme(theme), api.WithLocation(cfg.Timezone)}
	if cfg.PNGEnabled {
		var allocOpts []chromedp.ExecAllocatorOption
		if cfg.ChromePath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ChromePath))
		}
		opts = append(opts, api.WithPNGRenderer(export.NewPNGRenderer(cfg.PNGTimeout, allocOpts...)))
	}

	handler := api.NewHandler(service, opts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var metricsSrv *http.Server
	if cfg.MetricsAddress == "" {
		mux.Handle("GET /metrics", promhttp.Handler())
	} else {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Printf("api metrics listening on %s", cfg.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	authMiddleware := auth.NewMiddleware(auth.Config{
		Secret:   cfg.AuthSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	})
	limiter := httptransport.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	accessLog := log.New(os.Stdout, "[http] ", log.LstdFlags)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		WriteTimeout: cfg.PNGTimeout + 15*time.Second,
	}, httptransport.Chain(mux,
		httptransport.RequestID,
		httptransport.AccessLog(accessLog),
		httptransport.CORS(cfg.CORSAllowedOrigins),
		authMiddleware.Wrap,
		limiter.Middleware,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("schedule api listening on %s (store=%s)", cfg.HTTPAddress, cfg.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown error: %v", err)
		}
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
