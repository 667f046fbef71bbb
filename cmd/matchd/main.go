package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/castlelane/matchcore/internal/config"
	"github.com/castlelane/matchcore/internal/match"
	"github.com/castlelane/matchcore/internal/msgcat"
	"github.com/castlelane/matchcore/internal/obslog"
	"github.com/castlelane/matchcore/internal/rules"
	"github.com/castlelane/matchcore/internal/transport/httpapi"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	opts := []match.Option{}

	var store *match.Store
	if cfg.RedisURL != "" {
		store, err = match.NewStore(cfg.RedisURL, cfg.SnapshotTTL())
		if err != nil {
			log.Fatalf("match store init error: %v", err)
		}
		defer store.Close()
		opts = append(opts, match.WithStore(store))
	}

	var repo *match.Repository
	if cfg.DatabaseURL != "" {
		repo, err = match.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("match repository init error: %v", err)
		}
		defer repo.Close()
		opts = append(opts, match.WithRepository(repo))
	}

	engine := match.New(rules.NewOracle(), match.Config{
		JoinWindow:     cfg.JoinWindow(),
		NoShowGrace:    cfg.NoShowGrace(),
		InitialClockMs: cfg.InitialClockMs(),
	}, opts...)

	server := httpapi.New(engine, cat)

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("matchd_listen", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("matchd_shutdown", zap.String("signal", sig.String()))
		_ = server.Shutdown()
	case err := <-errCh:
		if err != nil {
			obslog.L().Error("matchd_serve_error", zap.Error(err))
			os.Exit(1)
		}
	}
}
