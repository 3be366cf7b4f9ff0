package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/defistate-maker-go/api"
	"github.com/defistate/defistate-maker-go/cmd/maker/config"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, m, err := bootstrap(cfg, rootLogger.With("component", "maker"), prometheusRegistry)
	if err != nil {
		rootLogger.Error("Failed to bootstrap maker", "error", err)
		close()
	}

	rpcServer, err := api.NewServer(api.NewMakerAPI(m, chain, chain))
	if err != nil {
		rootLogger.Error("Failed to register maker API", "error", err)
		close()
	}
	defer rpcServer.Stop()

	rpcRouter := newRPCRouter(rpcServer, cfg.WSOrigins, cfg.RateLimitPerMinute, rootLogger.With("component", "rpc"))
	servers := []*http.Server{
		{Addr: cfg.RPCAddr, Handler: rpcRouter, ReadHeaderTimeout: 5 * time.Second},
		{Addr: cfg.MetricsAddr, Handler: newMetricsRouter(prometheus.DefaultGatherer), ReadHeaderTimeout: 5 * time.Second},
	}
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			rootLogger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case err := <-errCh:
		rootLogger.Error("Fatal server error", "error", err)
	case <-ctx.Done():
		rootLogger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rootLogger.Warn("Server shutdown failed", "addr", srv.Addr, "error", err)
		}
	}
}

func loadConfig() (*config.MakerConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
