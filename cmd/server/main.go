package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"veryphy/internal/audit"
	"veryphy/internal/auth"
	"veryphy/internal/cache"
	"veryphy/internal/certificate"
	"veryphy/internal/ledger"
	ledgerhandler "veryphy/internal/ledger/handler"
	"veryphy/internal/ledger/substrate"
	"veryphy/internal/mirror"
	"veryphy/internal/platform/config"
	"veryphy/internal/platform/httpserver"
	"veryphy/internal/platform/logger"
	"veryphy/internal/platform/metrics"
	"veryphy/internal/platform/middleware"
	platformredis "veryphy/internal/platform/redis"
)

// main wires dependencies and owns process lifecycle. Business logic lives in
// the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger substrate: Postgres when configured, in-memory otherwise.
	var store substrate.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := substrate.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate ledger schema", "error", err)
			os.Exit(1)
		}
		store = pg
		log.Info("using postgres substrate")
	} else {
		store = substrate.NewMemory()
		log.Info("using in-memory substrate")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore())

	svc := ledger.New(store, log, m, auditPublisher)
	if err := svc.InitLedger(ctx); err != nil {
		log.Error("init ledger", "error", err)
		os.Exit(1)
	}

	// Optional read mirror.
	var mirrorStore ledgerhandler.Mirror
	if cfg.MirrorDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.MirrorDSN)
		if err != nil {
			log.Error("open mirror pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		ms := mirror.New(pool)
		if err := ms.Migrate(ctx); err != nil {
			log.Error("migrate mirror schema", "error", err)
			os.Exit(1)
		}
		mirrorStore = ms
		log.Info("read mirror enabled")
	}

	// Optional verification cache.
	var verifyCache ledgerhandler.Cache
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		verifyCache = cache.New(redisClient.Client, cfg.CacheTTL)
		log.Info("verification cache enabled", "ttl", cfg.CacheTTL)
	}

	tokens := auth.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	users := auth.NewInMemoryUserStore()
	authService := auth.NewService(users, tokens, log)
	if password := os.Getenv("VERYPHY_ADMIN_PASSWORD"); password != "" {
		if _, err := authService.Provision(ctx, "admin", password, auth.RoleAdmin, ""); err != nil {
			log.Error("provision admin user", "error", err)
			os.Exit(1)
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	auth.NewHandler(authService).Register(router)
	ledgerhandler.New(
		svc,
		verifyCache,
		mirrorStore,
		certificate.NewJSONExtractor(),
		auth.NewJWTServiceAdapter(tokens),
		log,
	).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	// Audit worker drains events to Kafka when brokers are configured.
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		worker := audit.NewWorker(auditPublisher.Inbox(), sink, log)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit sink enabled", "topic", cfg.AuditTopic)
	}

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
