package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/JustJay7/eviction-hearing-parser/internal/app"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/server"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if migrate {
		// Initialize migrates as part of opening the store.
		if _, err := database.Initialize(cfg, log); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", "error", err)
	}

	srv := server.New(cfg, server.Deps{
		Store:     a.Store,
		Pages:     a.Pages,
		Reports:   a.Reports,
		NewRunner: a.NewRunner,
		Closer:    a,
	}, log)

	log.Info("Starting Eviction Hearing Parser",
		"host", cfg.Host,
		"port", cfg.Port,
		"county", cfg.County,
		"backend", cfg.FetchBackend,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}
