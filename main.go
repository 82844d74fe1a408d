package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dealfinder/api"
	"dealfinder/config"
	"dealfinder/httputil"
	"dealfinder/jobs"
	"dealfinder/logging"
	"dealfinder/qualify"
	"dealfinder/scheduler"
	"dealfinder/scraper"
	"dealfinder/services"
	"dealfinder/storage"
	"dealfinder/workers"
)

var (
	migrate = flag.Bool("migrate", false, "Create the Postgres tables and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogMaxMB, 1)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting dealfinder...")
	log.Printf("Search tuning: steps %v, batch %d, cache window %s, %d boroughs mapped",
		cfg.Search.RelaxationSteps, cfg.Search.BatchSize, cfg.Search.CacheMaxAge(), len(cfg.Search.Boroughs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistent store: Postgres, then SQLite, else run without a cache
	var store services.Store
	switch {
	case cfg.DatabaseURL != "":
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

		if *migrate {
			if err := pgStore.Migrate(ctx); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
			log.Println("Migration complete!")
			return
		}
		store = pgStore
	case cfg.DBPath != "":
		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		defer sqliteStore.Close()
		log.Printf("SQLite database: %s", cfg.DBPath)
		store = sqliteStore
	default:
		log.Println("Warning: no DATABASE_URL or DB_PATH, running without cache or audit records")
	}

	// Job registry: Redis when shared, in-memory otherwise
	var jobStore jobs.Store
	if cfg.RedisURL != "" {
		rdb, err := jobs.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		jobStore = jobs.NewRedisStore(rdb, cfg.Jobs.Retention)
		log.Printf("Job registry: Redis %s", maskConnectionString(cfg.RedisURL))
	} else {
		jobStore = jobs.NewMemoryStore()
		log.Println("Job registry: in-memory")
	}

	clients := httputil.NewClients(cfg)
	if cfg.Provider.APIKey == "" {
		log.Println("Warning: RAPIDAPI_KEY not set, StreetEasy searches will fail")
	}
	if cfg.Qualifier.APIKey == "" {
		log.Println("Warning: ANTHROPIC_API_KEY not set, qualification batches will fail")
	}

	provider := scraper.NewStreetEasyClient(cfg.Provider, clients.Provider)
	assessor := qualify.NewAnthropicClient(cfg.Qualifier, clients.Qualifier)
	qualifier := qualify.NewQualifier(assessor, cfg.Search.BatchSize, cfg.Search.BatchDelay(), cfg.Qualifier.Timeout)
	search := services.NewSearchService(jobStore, store, provider, qualifier, cfg.Search, cfg.Provider.Timeout)

	log.Println("Services initialized")

	// Background retention sweep
	retentionWorker := workers.NewRetentionWorker(jobStore, cfg.Jobs.Retention)
	go retentionWorker.Run(ctx, 0)
	log.Println("Retention worker started")

	sched := scheduler.New(cfg.Jobs, retentionWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(search).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	search.Wait()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.LastIndex(connStr, "@")
	if at < start {
		return connStr
	}
	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
