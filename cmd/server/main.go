package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"knowledgebot/internal/answer"
	"knowledgebot/internal/config"
	"knowledgebot/internal/database"
	"knowledgebot/internal/handlers"
	"knowledgebot/internal/jobs"
	"knowledgebot/internal/knowledge"
	"knowledgebot/internal/logging"
	"knowledgebot/internal/middleware"
	"knowledgebot/internal/models"
	"knowledgebot/internal/preflight"
	"knowledgebot/internal/services"
	"knowledgebot/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting knowledgebot...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s, Documents: %d)",
		cfg.Port, cfg.Environment, len(cfg.KnowledgeDocumentIDs))

	ctx := context.Background()

	// User-facing texts, hot-reloaded when MESSAGES_FILE changes
	messages, err := config.NewMessageCatalog(cfg.MessagesFile)
	if err != nil {
		log.Printf("⚠️  Failed to load messages from %s, using defaults: %v", cfg.MessagesFile, err)
	}
	watchCtx, stopWatch := context.WithCancel(ctx)
	if cfg.MessagesFile != "" {
		go func() {
			if err := messages.Watch(watchCtx); err != nil {
				log.Printf("⚠️  Message catalogue watcher stopped: %v", err)
			}
		}()
	}

	recordStore, closeStore := openRecordStore(ctx, cfg)

	// Redis is optional; without it update dedupe is per process
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, deduplicating updates in memory: %v", err)
			redisService = nil
		}
	}

	var telegram *services.TelegramService
	var messenger services.Messenger = services.NoopMessenger{}
	var botIdentity preflight.BotIdentity
	if cfg.TelegramBotToken != "" {
		telegram = services.NewTelegramService(cfg.TelegramBotToken)
		messenger = telegram
		botIdentity = telegram
	} else {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set, replies will only be logged")
	}

	// Knowledge base
	knowledgeClient := &http.Client{Timeout: cfg.KnowledgeTimeout}
	source := knowledge.NewRouterSource(
		knowledge.NewNotionSource(cfg.NotionAPIKey),
		knowledge.NewWebSource(knowledgeClient),
	)
	fetcher := knowledge.NewFetcher(source, cfg.KnowledgeDocumentIDs, knowledge.WithCallTimeout(cfg.KnowledgeTimeout))
	knowledgeCache := knowledge.NewCache(fetcher, knowledge.DefaultTTL, nil)

	// Answer router: Gemini with rotating keys, then the OpenAI-compatible fallback
	var openAIKeys []string
	if cfg.OpenAIAPIKey != "" {
		openAIKeys = []string{cfg.OpenAIAPIKey}
	}
	router := answer.NewRouter(cfg.GenerationTimeout,
		answer.StageConfig{
			Provider:    models.ProviderPrimary,
			Generator:   answer.NewGeminiGenerator(float32(cfg.GenerationTemperature)),
			Model:       cfg.GeminiModel,
			Credentials: cfg.GeminiAPIKeys,
			Rotating:    true,
		},
		answer.StageConfig{
			Provider:    models.ProviderSecondary,
			Generator:   answer.NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.GenerationTemperature),
			Model:       cfg.OpenAIModel,
			Credentials: openAIKeys,
		},
	)
	log.Printf("🤖 Answer router: %d Gemini key(s) on %s, fallback %s",
		len(cfg.GeminiAPIKeys), cfg.GeminiModel, cfg.OpenAIModel)

	results := preflight.NewChecker(cfg, recordStore, botIdentity).WithProviders(router).RunAll(ctx)
	if preflight.HasFailures(results) && cfg.IsProduction() {
		closeStore()
		log.Fatal("❌ Pre-flight checks failed")
	}

	metricsService := services.NewMetricsService(prometheus.DefaultRegisterer)
	sessionService := services.NewSessionService(recordStore, cfg.StoreTimeout, nil)
	systemConfigService := services.NewSystemConfigService(recordStore, cfg.StoreTimeout, nil)

	bot := services.NewBotService(services.BotDeps{
		RateLimiter:  services.NewUserRateLimiter(cfg.UserRatePerMinute, cfg.UserRateBurst),
		SystemConfig: systemConfigService,
		Sessions:     sessionService,
		Knowledge:    knowledgeCache,
		Answerer:     router,
		Metrics:      metricsService,
		Messenger:    messenger,
		Messages:     messages,
		Defaults: services.BotDefaults{
			AIEnabled:        cfg.AIEnabled,
			AdminChatID:      cfg.AdminChatID,
			HandoverKeywords: cfg.HandoverKeywords,
		},
	})

	// Warm the knowledge cache so the first user does not pay the full fetch
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*cfg.KnowledgeTimeout)
		defer cancel()
		snapshot, _ := knowledgeCache.Get(warmCtx)
		log.Printf("📚 [KNOWLEDGE] Initial fetch: %d documents, %d failed", len(snapshot.Documents), len(snapshot.Failed))
	}()

	var jobScheduler *jobs.JobScheduler
	if cfg.KnowledgeRefreshCron != "" {
		jobScheduler, err = jobs.NewJobScheduler()
		if err != nil {
			log.Printf("⚠️  Failed to create job scheduler: %v", err)
		} else {
			job := jobs.NewKnowledgeRefreshJob(knowledgeCache, 2*cfg.KnowledgeTimeout)
			if err := jobScheduler.Register(jobs.KnowledgeRefreshJobName, cfg.KnowledgeRefreshCron, job); err != nil {
				log.Printf("⚠️  Knowledge refresh not scheduled: %v", err)
			}
			jobScheduler.Start()
		}
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "knowledgebot v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.KnowledgeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prom := fiberprometheus.New("knowledgebot")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Webhook=%d/min, Admin=%d/min",
		rateLimitConfig.WebhookMax, rateLimitConfig.AdminMax)

	healthHandler := handlers.NewHealthHandler(knowledgeCache, sessionService)
	webhookHandler := handlers.NewTelegramWebhookHandler(
		cfg.TelegramWebhookSecret,
		bot,
		services.NewUpdateDeduplicator(redisService),
		cfg.MessageTimeout,
	)
	adminHandler := handlers.NewAdminHandler(
		knowledgeCache,
		fetcher,
		metricsService,
		sessionService,
		systemConfigService,
		2*cfg.KnowledgeTimeout,
	)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/telegram/webhook", middleware.WebhookRateLimiter(rateLimitConfig), webhookHandler.Handle)

	admin := api.Group("/admin",
		middleware.AdminKeyMiddleware(cfg.AdminAPIKey),
		middleware.AdminRateLimiter(rateLimitConfig),
	)
	admin.Post("/knowledge/refresh", adminHandler.RefreshKnowledge)
	admin.Get("/metrics", adminHandler.GetMetrics)
	admin.Get("/sessions/:userId", adminHandler.GetSession)
	admin.Put("/sessions/:userId/mode", adminHandler.SetSessionMode)
	admin.Post("/config/invalidate", adminHandler.InvalidateConfig)

	pollCtx, stopPolling := context.WithCancel(ctx)
	pollDone := make(chan struct{})
	polling := false
	if telegram != nil {
		switch {
		case cfg.TelegramPolling:
			polling = true
			go func() {
				defer close(pollDone)
				telegram.StartPolling(pollCtx, webhookHandler.Dispatch)
			}()
			log.Println("📡 Telegram long polling enabled")
		case cfg.TelegramWebhookURL != "":
			hookCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := telegram.SetWebhook(hookCtx, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
				log.Printf("⚠️  %v", err)
			}
			cancel()
		}
	}

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	if cfg.AdminAPIKey == "" {
		log.Println("⚠️  ADMIN_API_KEY not set, admin routes disabled")
	}

	// Handle graceful shutdown; main returns only after the drain
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		stopPolling()
		if polling {
			<-pollDone
		}
		stopWatch()

		if jobScheduler != nil {
			if err := jobScheduler.Stop(); err != nil {
				log.Printf("⚠️  Error stopping job scheduler: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Error shutting down server: %v", err)
		}

		// let accepted messages get their reply
		webhookHandler.Wait()

		if redisService != nil {
			redisService.Close()
		}
		closeStore()
		log.Println("👋 Shutdown complete")
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		closeStore()
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-shutdownDone
}

// openRecordStore selects MongoDB, then SQL, then no store. A store that
// cannot be opened degrades to no store instead of stopping the bot.
func openRecordStore(ctx context.Context, cfg *config.Config) (store.RecordStore, func()) {
	noop := func() {}

	if cfg.MongoDBURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err := database.NewMongoDB(ctx, cfg.MongoDBURI)
		if err != nil {
			log.Printf("⚠️  Failed to connect to MongoDB: %v (sessions kept in memory)", err)
			return nil, noop
		}
		if err := mongoDB.Initialize(ctx); err != nil {
			log.Printf("⚠️  Failed to create MongoDB indexes: %v", err)
		}
		log.Printf("✅ MongoDB record store ready (%s)", mongoDB.Name())
		return store.NewMongoStore(mongoDB), func() { mongoDB.Close(context.Background()) }
	}

	if cfg.StoreDSN != "" {
		db, err := database.New(cfg.StoreDSN)
		if err != nil {
			log.Printf("⚠️  Failed to open record store: %v (sessions kept in memory)", err)
			return nil, noop
		}
		if err := db.Initialize(ctx); err != nil {
			log.Printf("⚠️  Failed to initialize record store: %v (sessions kept in memory)", err)
			db.Close()
			return nil, noop
		}
		log.Printf("✅ %s record store ready", db.Dialect)
		return store.NewSQLStore(db), func() { db.Close() }
	}

	log.Println("⚠️  No MONGODB_URI or STORE_DSN, sessions kept in memory and system config disabled")
	return nil, noop
}
