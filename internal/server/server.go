// Package server provides HTTP server initialization and lifecycle management
// for the Strata memory API.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strataml/strata/internal/config"
	"github.com/strataml/strata/internal/system"
)

// Start initializes and starts the HTTP server. Returns the actual address
// being listened on (useful for testing with port 0) and the WebSocketHub
// for wiring external event broadcasts; the hub is nil when the websocket
// feature is disabled. The server shuts down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, sys *system.System) (string, *WebSocketHub) {
	mux := http.NewServeMux()

	var hub *WebSocketHub
	if cfg.Features.EnableWebSocket {
		hub = NewWebSocketHub()
		go hub.Run()
		mux.Handle("/ws", hub)
	}

	api := NewAPI(sys, hub)
	api.Routes(mux)

	if cfg.Features.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	rateLimiter := NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	handler := securityHeadersMiddleware(requestIDMiddleware(loggingMiddleware(rateLimiter.Middleware(mux))))

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatalf("server: listen on %s: %v", cfg.Addr(), err)
	}
	addr := listener.Addr().String()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if hub != nil {
			hub.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown: %v", err)
		}
	}()

	return addr, hub
}
