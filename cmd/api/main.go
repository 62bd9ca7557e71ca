package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/linguadesk/internal/auth"
	"github.com/geocoder89/linguadesk/internal/cache"
	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/db"
	httpx "github.com/geocoder89/linguadesk/internal/http"
	"github.com/geocoder89/linguadesk/internal/http/handlers"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/geocoder89/linguadesk/internal/redisclient"
	"github.com/geocoder89/linguadesk/internal/repo/memory"
	"github.com/geocoder89/linguadesk/internal/repo/postgres"
	"github.com/geocoder89/linguadesk/internal/share"
	"github.com/geocoder89/linguadesk/internal/translate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracer := observability.NoopShutdown
	if cfg.OTelEnabled {
		sd, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "linguadesk-api",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		shutdownTracer = sd
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	deps := httpx.Deps{
		JWT:      auth.NewManager(cfg.JWTSecret, cfg.AccessTTL()),
		Prom:     prom,
		Gatherer: reg,
		Checks:   map[string]handlers.Pinger{},
	}

	var lookup share.DocumentLookup

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory stores; data is lost on restart")

		docs := memory.NewDocumentsRepo()
		deps.Documents = docs
		deps.Meetings = memory.NewMeetRepo(docs)
		deps.Users = memory.NewUsersRepo()
		lookup = docs

	default:
		pctx, cancel := config.WithTimeout(10 * time.Second)
		pool, err := db.NewPool(pctx, cfg.DBURL)
		cancel()
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		docs := postgres.NewDocumentsRepo(pool, prom)
		deps.Documents = docs
		deps.Meetings = postgres.NewMeetRepo(pool, prom)
		deps.Users = postgres.NewUsersRepo(pool, prom)
		deps.Checks["postgres"] = pool.Ping
		lookup = docs
	}

	var shareCache cache.Store = cache.New(cfg.ShareCacheTTL)
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
			Timeout:  cfg.RedisTimeout,
		})
		defer rdb.Close()

		shareCache = cache.NewRedis(rdb.Raw(), "linguadesk:", cfg.ShareCacheTTL)
		deps.Checks["redis"] = rdb.Ping
	}
	deps.Shares = share.NewResolver(lookup, shareCache, cfg.ShareCacheTTL, prom, log)

	var translator translate.Translator = translate.EchoTranslator{}
	if cfg.OpenAIAPIKey != "" {
		translator = translate.NewOpenAIClient(translate.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	} else {
		log.Warn("OPENAI_API_KEY not set; /translate echoes its input")
	}
	deps.Translator = translate.NewProtected(translator, translate.ProtectedConfig{Timeout: cfg.TranslateTimeout}, prom)

	router := httpx.NewRouter(log, deps, cfg)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-stop:
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
