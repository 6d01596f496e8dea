package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/api/handlers"
	"github.com/discover-vnext/backend/internal/cache/redis"
	"github.com/discover-vnext/backend/internal/ingestion"
	"github.com/discover-vnext/backend/internal/llm"
	"github.com/discover-vnext/backend/internal/metrics"
	"github.com/discover-vnext/backend/internal/middleware/ratelimit"
	"github.com/discover-vnext/backend/internal/middleware/security"
	"github.com/discover-vnext/backend/internal/middleware/validation"
	"github.com/discover-vnext/backend/internal/recommend"
	"github.com/discover-vnext/backend/internal/search"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/config"
	appLogger "github.com/discover-vnext/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Discover API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, recommendations will recompute every request", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var recommendCache recommend.Cache
	var searchCache search.Cache
	if redisClient != nil {
		recommendCache = redisClient
		searchCache = redisClient
	}

	recommender := recommend.NewEngine(sqliteClient, recommendCache, cfg.Recommend)
	searchEngine := search.NewEngine(sqliteClient, searchCache, llmClient, recommender, cfg.Recommend)
	importer := ingestion.NewImporter(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	companyHandler := handlers.NewCompanyHandler(sqliteClient)
	userHandler := handlers.NewUserHandler(sqliteClient, redisClient)
	documentHandler := handlers.NewDocumentHandler(sqliteClient)
	searchHandler := handlers.NewSearchHandler(searchEngine, sqliteClient, recommender, redisClient, cfg.Recommend.MaxQueryHistory)
	recommendationHandler := handlers.NewRecommendationHandler(recommender, sqliteClient, redisClient)
	importHandler := handlers.NewImportHandler(importer)
	wsHandler := handlers.NewWebSocketHandler(searchEngine, recommender)

	api := app.Group("/api/v1")

	api.Post("/companies", companyHandler.CreateCompany)
	api.Get("/companies", companyHandler.ListCompanies)
	api.Get("/companies/:id", companyHandler.GetCompany)
	api.Delete("/companies/:id", companyHandler.DeleteCompany)

	api.Post("/users", userHandler.CreateUser)
	api.Get("/users", userHandler.ListUsers)
	api.Get("/users/:id", userHandler.GetUser)
	api.Delete("/users/:id", userHandler.DeleteUser)

	api.Post("/documents", documentHandler.CreateDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Post("/search", searchHandler.HandleSearch)
	api.Get("/search/history", searchHandler.GetQueryHistory)
	api.Delete("/search/history", searchHandler.DeleteQueryHistory)

	api.Get("/recommendations/health/cache", recommendationHandler.CacheHealth)
	api.Get("/recommendations/:user_id", recommendationHandler.GetRecommendations)
	api.Post("/recommendations/:user_id/refresh", recommendationHandler.RefreshRecommendations)

	api.Post("/import/workbook", importHandler.UploadWorkbook)
	api.Post("/import/validate", importHandler.ValidateWorkbook)
	api.Get("/import/insights", importHandler.GetInsights)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/search", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	started := time.Now()
	api.Get("/status", func(c *fiber.Ctx) error {
		stats, err := sqliteClient.GetUsageStats()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to collect status",
			})
		}
		return c.JSON(fiber.Map{
			"uptime_seconds": int64(time.Since(started).Seconds()),
			"companies":      stats.Companies,
			"users":          stats.Users,
			"documents":      stats.Documents,
			"queries":        stats.Queries,
			"redis":          redisClient != nil,
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
