package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propply/backend/internal/auth"
	"github.com/propply/backend/internal/cache"
	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/config"
	"github.com/propply/backend/internal/database"
	"github.com/propply/backend/internal/events"
	"github.com/propply/backend/internal/geocode"
	"github.com/propply/backend/internal/handlers"
	"github.com/propply/backend/internal/middleware"
	"github.com/propply/backend/internal/opendata"
	"github.com/propply/backend/internal/scheduler"
	"github.com/propply/backend/internal/search"
	"github.com/propply/backend/internal/stream"
	propsync "github.com/propply/backend/internal/sync"
	"github.com/propply/backend/internal/webhooks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg := config.LoadOrDefault(configPath)

	// Get port from environment (Cloud Run requirement)
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// The orchestrator reads its deadline from the environment; bridge the
	// config value in so both sources agree, with the env winning.
	if os.Getenv("RUN_DEADLINE_SECONDS") == "" && cfg.Run.DeadlineSeconds > 0 {
		os.Setenv("RUN_DEADLINE_SECONDS", strconv.Itoa(cfg.Run.DeadlineSeconds))
	}

	// Supabase is optional: without it the service still runs full
	// compliance checks, it just cannot persist or serve stored data.
	var db *database.SupabaseClient
	if os.Getenv("SUPABASE_URL") != "" {
		var err error
		db, err = database.NewSupabaseClient()
		if err != nil {
			log.Fatalf("Failed to initialize Supabase client: %v", err)
		}
		log.Println("✅ Supabase client initialized")
	} else {
		log.Println("⚠️ SUPABASE_URL not set — persistence disabled")
	}

	// Pipeline components
	odClient := opendata.NewClient(opendata.CredentialsFromEnv())
	cacheClient := cache.FromEnv()
	geocoder := geocode.NewClient(odClient, cacheClient)
	engine := search.NewEngine(odClient)
	orch := compliance.NewOrchestrator(geocoder, engine)

	var syncSvc *propsync.Service
	if db != nil {
		syncSvc = propsync.NewService(db)
	}

	// API keys are enforced only when a store exists and enforcement is on.
	var keyManager *auth.APIKeyManager
	if db != nil && os.Getenv("REQUIRE_API_KEY") == "true" {
		keyManager = auth.NewAPIKeyManager(db)
		log.Println("🔑 API key enforcement enabled")
	}

	// Webhooks: registry seeded from config, deliveries via Cloud Tasks when
	// configured, otherwise the in-process worker pool.
	registry := webhooks.NewRegistry()
	for _, ep := range cfg.Webhooks.Endpoints {
		eventTypes := make([]webhooks.EventType, 0, len(ep.Events))
		for _, e := range ep.Events {
			eventTypes = append(eventTypes, webhooks.EventType(e))
		}
		sub := &webhooks.WebhookSubscription{URL: ep.URL, Events: eventTypes, Secret: ep.Secret}
		if err := registry.Register(sub); err != nil {
			log.Printf("⚠️ Skipping webhook endpoint %s: %v", ep.URL, err)
		}
	}

	var hooks webhooks.WebhookEmitter
	if project := os.Getenv("WEBHOOK_TASKS_PROJECT"); project != "" {
		cd, err := webhooks.NewCloudDispatcher(registry, project,
			os.Getenv("WEBHOOK_TASKS_LOCATION"), os.Getenv("WEBHOOK_TASKS_QUEUE"),
			cfg.Webhooks.Workers)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Tasks dispatcher: %v", err)
		}
		hooks = cd
	} else {
		hooks = webhooks.NewDispatcher(registry, cfg.Webhooks.Workers)
	}

	// Events: in-process bus, optionally mirrored to Pub/Sub.
	var bus *events.EventBus
	var emitter events.EventEmitter
	pubsubProject := os.Getenv("EVENTS_PUBSUB_PROJECT")
	if pubsubProject == "" {
		pubsubProject = cfg.Events.PubSubProject
	}
	if pubsubProject != "" {
		psBus, err := events.NewPubSubEventBus(pubsubProject, cfg.Events.PubSubTopic)
		if err != nil {
			log.Fatalf("Failed to initialize Pub/Sub event bus: %v", err)
		}
		defer psBus.Close()
		bus = psBus.EventBus
		emitter = psBus
	} else {
		bus = events.NewEventBus()
		emitter = bus
	}

	// Websocket hub bridged off the bus.
	streamer := stream.NewRunStreamer()
	go streamer.Run()
	bridge := streamer.BridgeEventBus(bus)
	defer bus.Unsubscribe(bridge)

	// Background resync of stale properties.
	var resync *scheduler.ResyncScheduler
	if db != nil && syncSvc != nil {
		resync = scheduler.NewResyncScheduler(db, &resyncRunner{orch: orch, svc: syncSvc}, scheduler.Config{
			Interval:       time.Duration(cfg.Sync.ResyncIntervalMinutes) * time.Minute,
			StaleThreshold: time.Duration(cfg.Sync.StaleAfterHours) * time.Hour,
			BatchSize:      cfg.Sync.ResyncBatchSize,
			RunTimeout:     time.Duration(cfg.Run.DeadlineSeconds) * time.Second,
		})
	}

	// Create router
	router := mux.NewRouter()

	router.HandleFunc("/", handlers.HandleServiceCard()).Methods("GET")
	router.HandleFunc("/health", handlers.HandleHealth(db, odClient, streamer, hooks)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ws/runs", streamer.HandleWebSocket)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		MaxCallsPerMinute: cfg.RateLimit.MaxCallsPerMinute,
		BurstSize:         cfg.RateLimit.BurstSize,
	})
	api.Use(rateLimiter.Middleware)

	// API key middleware (Gorilla Mux adapter)
	if keyManager != nil {
		api.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				middleware.APIKeyMiddleware(keyManager, next.ServeHTTP)(w, r)
			})
		})
	}

	api.HandleFunc("/compliance", handlers.HandleComplianceCheck(orch, syncSvc, emitter, hooks)).Methods("POST")
	api.HandleFunc("/search", handlers.HandlePropertySearch(geocoder)).Methods("POST")
	api.HandleFunc("/properties/{propertyId}/compliance", handlers.HandleGetPropertyCompliance(syncSvc)).Methods("GET")
	api.HandleFunc("/sync", handlers.HandleSyncProperty(orch, syncSvc, emitter, hooks)).Methods("POST")

	api.HandleFunc("/webhooks", handlers.HandleListWebhooks(registry)).Methods("GET")
	api.HandleFunc("/webhooks", handlers.HandleRegisterWebhook(registry)).Methods("POST")
	api.HandleFunc("/webhooks/{webhookId}", handlers.HandleUnregisterWebhook(registry)).Methods("DELETE")

	api.HandleFunc("/events/stream", handlers.HandleSSEStream(bus)).Methods("GET")

	// CORS middleware for Cloud Run
	router.Use(handlers.MakeCORSMiddleware(cfg))

	// Logging middleware
	router.Use(handlers.LoggingMiddleware)

	// Create server. WriteTimeout stays 0: /api/v1/events/stream and
	// /ws/runs hold the response open, and a run itself may take the full
	// deadline.
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown (Cloud Run sends SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		if resync != nil {
			resync.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		// In-flight requests are drained; now the queue can close.
		hooks.Shutdown()
		cacheClient.Close()
	}()

	// Start server
	log.Printf("🚀 Propply API starting on port %s", port)
	log.Printf("📊 Health check: http://localhost:%s/health", port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

// resyncRunner adapts the pipeline + sync service to the scheduler.
type resyncRunner struct {
	orch *compliance.Orchestrator
	svc  *propsync.Service
}

func (r *resyncRunner) Resync(ctx context.Context, prop database.NYCProperty) error {
	rec, err := r.orch.Run(ctx, prop.Address, "", compliance.DefaultRunConfig())
	if rec == nil || (rec.BIN == "" && rec.BBL == "") {
		return err
	}
	if _, syncErr := r.svc.SyncRecord(ctx, prop.PropertyID, rec, propsync.DefaultSyncOptions()); syncErr != nil {
		return syncErr
	}
	return nil
}
