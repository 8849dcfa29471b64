package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/punchamoorthee/storehub/internal/api"
	"github.com/punchamoorthee/storehub/internal/config"
	"github.com/punchamoorthee/storehub/internal/domain"
	"github.com/punchamoorthee/storehub/internal/ledger"
	"github.com/punchamoorthee/storehub/internal/service"
)

var log = logging.Logger("storehub")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logging.SetLogLevel("*", cfg.LogLevel); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := cfg.OpenBackend(ctx)
	if err != nil {
		log.Fatalf("Unable to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer backend.Close()

	// Initialize Layers
	l := ledger.New(domain.AccountID(cfg.Overseer))
	svc := service.NewMarketplace(backend, l)
	handler := api.NewHandler(svc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
	}()

	log.Infof("Server starting on :%s (env=%s, storage=%s, overseer=%s)", cfg.Port, cfg.Env, cfg.Storage.Backend, cfg.Overseer)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Info("Server stopped")
}
