package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/db"
	"github.com/geocoder89/linguadesk/internal/observability"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	dir := flag.String("dir", cfg.MigrationsDir, "directory holding *.up.sql files")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, *dir); err != nil {
		log.Error("migrations failed", "dir", *dir, "err", err)
		os.Exit(1)
	}

	log.Info("migrations applied", "dir", *dir)
}
