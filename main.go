package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"Pylon/internal/api"
	"Pylon/internal/config"
	"Pylon/internal/engine"
	"Pylon/internal/logger"
)

var wg sync.WaitGroup

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pylon:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cleanup, err := logger.Setup(logger.Config{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		return err
	}
	defer cleanup()
	log := logger.L()

	snap, err := engine.Load(engine.Source{
		CatalogXLSX:   cfg.CatalogXLSX,
		ConstantsDir:  cfg.ConstantsDir,
		ConstantsPack: cfg.ConstantsPack,
	})
	if err != nil {
		return err
	}
	eng := engine.New(snap,
		engine.WithSearchBudget(cfg.SearchBudget),
		engine.WithWorkers(cfg.Workers),
		engine.WithLogger(log.With("component", "engine")),
	)

	r := mux.NewRouter()
	h := &api.Handler{Engine: eng, Log: log.With("component", "api")}
	limiter := api.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	api.Routes(r, h, limiter)

	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Cleanup(ctx, time.Minute, 10*time.Minute)
	}()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.CORS(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("server.starting", "addr", cfg.Addr, "tls", cfg.TLS(),
			"pack", snap.Pack.Key(), "catalog", snap.Catalog.Name()+"@"+snap.Catalog.Version())
		var err error
		if cfg.TLS() {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server.shutdown_signal")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	wg.Wait()
	log.Info("server.stopped")
	return nil
}
