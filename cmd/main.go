package main

import (
	"flag"
	"log"
	"net/http"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"

	"notesd/internal/config"
	"notesd/internal/dispatch"
	"notesd/internal/events"
	"notesd/internal/export"
	"notesd/internal/handlers"
	"notesd/internal/notify"
	"notesd/internal/scheduler"
	"notesd/internal/storage"
)

func main() {
	configPath := flag.String("config", "notesd.yaml", "path to config file (optional)")
	listen := flag.String("listen", "", "listen address, overrides config")
	storageType := flag.String("storage", "", "storage backend: memory, file, or sqlite, overrides config")
	storagePath := flag.String("storage-path", "", "data file or database path, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *storageType != "" {
		cfg.Storage.Backend = *storageType
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	var store storage.Storage

	switch cfg.Storage.Backend {
	case "memory":
		log.Println("Using memory storage")
		store = storage.NewMemoryStorage()
	case "file":
		log.Printf("Using file storage in %s", cfg.Storage.Path)
		store = storage.NewFileStorage(
			filepath.Join(cfg.Storage.Path, "notes.json"),
			filepath.Join(cfg.Storage.Path, "reminders.json"),
			filepath.Join(cfg.Storage.Path, "images.json"),
			filepath.Join(cfg.Storage.Path, "settings.json"),
		)
	case "sqlite":
		log.Printf("Using sqlite storage at %s", cfg.Storage.Path)
		store, err = storage.NewSQLiteStorage(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to initialize sqlite storage: %v", err)
		}
	default:
		log.Fatalf("Invalid storage backend: %s. Valid options are: memory, file, sqlite", cfg.Storage.Backend)
	}
	defer store.Close()

	hub := events.NewHub()
	go hub.Run()

	notifier := notify.NewDesktop(cfg.Notifications.Enabled, cfg.Notifications.Icon)
	d := dispatch.New(notifier, hub)

	clk := clock.New()
	sched := scheduler.New(store, scheduler.NewRegistry(clk), d, clk)
	d.SetCompleter(sched)

	if err := sched.Reload(); err != nil {
		log.Fatalf("Failed to load reminders: %v", err)
	}

	exporter := export.New(afero.NewOsFs())
	srv := handlers.New(store, sched, d, hub, exporter, cfg.Export.Directory)

	log.Println("Starting notesd with HTTP on", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, srv.Router()); err != nil {
		log.Fatalf("Could not start HTTP server: %s\n", err)
	}
}
