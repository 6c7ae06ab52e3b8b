package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/EyasDmour/vehicle-tracker/internal/api"
	"github.com/EyasDmour/vehicle-tracker/internal/config"
	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
	"github.com/EyasDmour/vehicle-tracker/internal/routing"
	"github.com/EyasDmour/vehicle-tracker/internal/units"
	"github.com/EyasDmour/vehicle-tracker/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db-path", "tracker.db", "Path to the SQLite database")
	configPath  = flag.String("config", "", "Path to a JSON config file (optional)")
	speedUnits  = flag.String("units", units.KMPH, "Speed units for API responses ("+units.GetValidUnitsString()+")")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	// .env is optional; flags and the config file take precedence anyway.
	_ = godotenv.Load()

	flag.Parse()

	if *showVersion {
		fmt.Printf("tracker %s\n", version.String())
		return
	}

	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("Invalid units %q, valid options: %s", *speedUnits, units.GetValidUnitsString())
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	hub := events.NewHub()
	defer hub.Close()

	router := routing.NewClient(cfg.GetOSRMBaseURL(), nil, cfg.GetRoutingTimeout())
	server := api.NewServer(database, hub, router, cfg, nil, *speedUnits)
	defer server.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// prune old location history once an hour
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -cfg.GetLiveRetentionDays())
				deleted, err := database.PruneLocationHistory(cutoff)
				if err != nil {
					log.Printf("failed to prune location history: %v", err)
				} else if deleted > 0 {
					log.Printf("pruned %d location history rows older than %s", deleted, cutoff.Format(time.DateOnly))
				}
			case <-ctx.Done():
				log.Print("prune routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		database.AttachAdminRoutes(mux)

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("tracker listening on %s (units: %s, db: %s)", *listen, *speedUnits, *dbPath)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
