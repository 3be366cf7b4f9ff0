package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRPCRouter serves JSON-RPC over HTTP and upgrades websocket requests so
// clients can subscribe to maker logs. A positive ratePerMinute limits each
// client IP.
func newRPCRouter(server *rpc.Server, wsOrigins []string, ratePerMinute int, logger *slog.Logger) http.Handler {
	mux := chi.NewMux()
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	if ratePerMinute > 0 {
		mux.Use(httprate.LimitByIP(ratePerMinute, 1*time.Minute))
	}

	ws := server.WebsocketHandler(wsOrigins)
	mux.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocket(r) {
			ws.ServeHTTP(w, r)
			return
		}
		server.ServeHTTP(w, r)
	}))
	return mux
}

// newMetricsRouter exposes gatherer on /metrics.
func newMetricsRouter(gatherer prometheus.Gatherer) http.Handler {
	mux := chi.NewMux()
	mux.Use(middleware.Recoverer)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}
