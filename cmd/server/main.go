package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/auth"
	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/handler"
	"github.com/podcastgen/api/internal/middleware"
	"github.com/podcastgen/api/internal/service"
	"github.com/podcastgen/api/internal/telemetry"
	ws "github.com/podcastgen/api/internal/websocket"
	"github.com/podcastgen/api/internal/worker"
	"github.com/podcastgen/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client and inspector
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Telemetry
	metrics := telemetry.Noop()
	var metricsHandler fiber.Handler
	if cfg.Telemetry.Enabled {
		m, h, shutdown, err := telemetry.Setup(cfg.Telemetry.ServiceName, cfg.Server.Env)
		if err != nil {
			log.Printf("Warning: telemetry not initialized: %v", err)
		} else {
			metrics = m
			metricsHandler = adaptor.HTTPHandler(h)
			defer shutdown(context.Background())
		}
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// One pooled HTTP client shared by every provider
	httpClient := client.NewHTTPClient(&cfg.HTTP)

	// Initialize external clients
	minimaxClient := client.NewMiniMaxClient(httpClient, &cfg.MiniMax)
	elevenLabsClient := client.NewElevenLabsClient(httpClient, &cfg.ElevenLabs)
	researchClient := client.NewResearchClient(httpClient, &cfg.Research)

	var audioClient *client.AudioClient
	if cfg.Audio.ServiceURL != "" {
		audioClient = client.NewAudioClient(httpClient, &cfg.Audio)
		if err := audioClient.HealthCheck(ctx); err != nil {
			log.Printf("Warning: audio service not available: %v", err)
		}
	}

	// Initialize R2 client (optional - episodes stay local if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, episodes are served locally only")
	}

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(httpClient, &cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize services
	podcastService := service.NewPodcastService(redisClient, asynqClient, inspector, elevenLabsClient, cfg.Pipeline.OutputDir, cfg.Pipeline.JobTimeout)
	masteringService, err := service.NewMasteringService(newEngine(&cfg.Pipeline), cfg.Pipeline.MasteringWorkers)
	if err != nil {
		log.Fatalf("Failed to initialize mastering: %v", err)
	}

	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}
	var encoder client.AudioEncoder
	if audioClient != nil {
		encoder = audioClient
	}

	podcastWorker := worker.NewPodcastWorker(worker.Deps{
		Research: service.NewResearchService(researchClient),
		Scripts:  service.NewScriptService(minimaxClient, validate),
		Clips: service.NewClipSynthesizer(elevenLabsClient, cfg.ElevenLabs.Voices(), client.VoiceSettings{
			Stability:       cfg.ElevenLabs.Stability,
			SimilarityBoost: cfg.ElevenLabs.Similarity,
		}, cfg.Pipeline.ClipConcurrency),
		Jingles:       service.NewJingleGenerator(minimaxClient, cfg.MiniMax.MusicModel, cfg.Pipeline.JinglePoll, cfg.Pipeline.JingleMaxWait),
		Mastering:     masteringService,
		Publisher:     service.NewPublishService(storage, encoder, cfg.Audio.EncodeMP3),
		Tracker:       podcastService,
		Notifier:      hub,
		Metrics:       metrics,
		JingleSeconds: cfg.Pipeline.JingleSeconds,
	})

	// Initialize handlers
	podcastHandler := handler.NewPodcastHandler(podcastService, validate, hub)

	// JWKS first, legacy HMAC secret as fallback
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)
	authHandler := handler.NewAuthHandler(authenticator)

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik ForwardAuth the identity arrives as X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.Gateway()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(authenticator).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: response.Handler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      redisClient.Ping(c.UserContext()).Err() == nil,
				"minimax":    minimaxClient.IsConfigured(),
				"music":      minimaxClient.IsMusicConfigured(),
				"elevenlabs": elevenLabsClient.IsConfigured(),
				"r2":         r2Client != nil,
				"audio":      audioClient.IsConfigured(),
				"auth":       jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	if metricsHandler != nil {
		app.Get("/metrics", metricsHandler)
	}

	// Finished episodes: /output/<jobId>/podcast.wav
	app.Static(service.OutputRoute, cfg.Pipeline.OutputDir, fiber.Static{
		ByteRange: true,
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Podcast routes
	podcast := api.Group("/podcast")
	podcast.Post("/generate", rateLimiter.PodcastLimit(cfg.RateLimit.PodcastPerHour), podcastHandler.Generate)
	podcast.Get("/status/:jobId", podcastHandler.Status)
	podcast.Get("/result/:jobId", podcastHandler.Result)
	podcast.Post("/cancel/:jobId", podcastHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", podcastHandler.Upgrade)
	app.Get("/ws/podcast/:jobId", podcastHandler.Events())

	// Start Asynq worker server
	workerServer := startWorkerServer(cfg, redisOpt, podcastWorker)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		// In-flight jobs see their context canceled and record it.
		workerServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newEngine(p *config.PipelineConfig) *audio.Engine {
	e := audio.NewEngine()
	e.Gap = time.Duration(p.GapMs) * time.Millisecond
	e.Placeholder = time.Duration(p.PlaceholderMs) * time.Millisecond
	e.TrackFadeIn = time.Duration(p.TrackFadeMs) * time.Millisecond
	e.TrackFadeOut = e.TrackFadeIn
	e.TargetRMS = p.TargetRMS
	e.Ceiling = p.Ceiling
	return e
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, podcastWorker *worker.PodcastWorker) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Pipeline.WorkerConcurrency,
			Queues: map[string]int{
				service.QueuePodcast: 1,
			},
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePodcast, podcastWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
	return srv
}
