package app

import (
	"kaffa-backend/internal/balance"
	"kaffa-backend/internal/config"
	"kaffa-backend/internal/database"
	"kaffa-backend/internal/distribution"
	"kaffa-backend/internal/harvest"
	"kaffa-backend/internal/health"
	"kaffa-backend/internal/middleware"
	"kaffa-backend/internal/settlement"
	"kaffa-backend/internal/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with global middleware and all ledger routes.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
		app.Use(middleware.HealthMarker(rdb))
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	healthHandlers := &health.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			healthHandlers.DB = sqlDB
		}
	}
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/reset", healthHandlers.Reset)

	if db != nil {
		backend := &settlement.BridgeClient{
			BaseURL: cfg.BridgeBaseURL,
			APIKey:  cfg.BridgeAPIKey,
		}

		balanceSvc := &balance.Service{DB: db}
		balanceHandlers := &balance.Handlers{Service: balanceSvc}
		app.Get("/api/v1/balances/:address", balanceHandlers.GetBalance)

		harvestSvc := &harvest.Service{DB: db}
		harvestHandlers := &harvest.Handlers{Service: harvestSvc}
		harvestGroup := app.Group("/api/v1/harvests")
		harvestGroup.Post("/report", harvestHandlers.Report)
		harvestGroup.Get("/history", harvestHandlers.History)
		harvestGroup.Get("/stats", harvestHandlers.Stats)

		distSvc := &distribution.Service{DB: db, Balances: balanceSvc}
		distHandlers := &distribution.Handlers{Service: distSvc}
		distGroup := app.Group("/api/v1/distributions")
		distGroup.Post("/distribute", distHandlers.Distribute)
		distGroup.Get("/pending", distHandlers.Pending)
		distGroup.Get("/summary/:harvestId", distHandlers.Summary)
		distGroup.Get("/holder/:address", distHandlers.HolderHistory)
		distGroup.Get("/holder/:address/earnings", distHandlers.HolderEarnings)

		withdrawalSvc := &withdrawal.Service{
			DB:         db,
			Balances:   balanceSvc,
			Settlement: backend,
			Network:    cfg.Network,
			Timeout:    cfg.SettlementTimeout,
		}
		withdrawalHandlers := &withdrawal.Handlers{Service: withdrawalSvc}
		withdrawalGroup := app.Group("/api/v1/withdrawals")
		withdrawalGroup.Post("/farmer", withdrawalHandlers.Farmer)
		withdrawalGroup.Get("/farmer/:address", withdrawalHandlers.FarmerHistory)
		withdrawalGroup.Post("/liquidity", withdrawalHandlers.Liquidity)
		withdrawalGroup.Get("/liquidity/:address", withdrawalHandlers.LiquidityHistory)
	}

	return app, db, rdb, nil
}
