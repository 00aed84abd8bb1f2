// Command strata-web serves the Strata memory system over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/strataml/strata/internal/config"
	"github.com/strataml/strata/internal/server"
	"github.com/strataml/strata/internal/storage/jsonfile"
	"github.com/strataml/strata/internal/system"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	// Load .env if present; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.Load()
	}

	var reg prometheus.Registerer
	if cfg.Features.EnableMetrics {
		reg = prometheus.DefaultRegisterer
	}

	sys, err := system.New(cfg, reg)
	if err != nil {
		log.Fatalf("Failed to initialize memory system: %v", err)
	}
	defer sys.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, hub := server.Start(ctx, cfg, sys)
	log.Printf("Strata memory API running at http://%s", addr)

	// Optionally watch the snapshot directory so external writers (backup
	// restores, sync jobs) show up on the event stream.
	if cfg.Features.WatchSnapshots && cfg.Storage.Engine == "json" && hub != nil {
		watcher := jsonfile.NewWatcher(cfg.Storage.DataPath, func(file string) {
			hub.Broadcast("store_changed", file)
		})
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: snapshot watcher failed to start: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
}
