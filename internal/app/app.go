package app

import (
	"finwatch-backend/internal/alerts"
	"finwatch-backend/internal/auth"
	"finwatch-backend/internal/config"
	"finwatch-backend/internal/database"
	"finwatch-backend/internal/events"
	"finwatch-backend/internal/fraud"
	"finwatch-backend/internal/guard"
	"finwatch-backend/internal/health"
	"finwatch-backend/internal/holdings"
	"finwatch-backend/internal/ledger"
	"finwatch-backend/internal/middleware"
	"finwatch-backend/internal/portfolios"
	"finwatch-backend/internal/transactions"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. Returns the DB and Redis handles so main can verify
// connections before listening.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS before session so rejected origins never touch Redis.
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionHandler, rdb, err := middleware.Session(middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	})
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		if db, err = database.Open(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
		if err = database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	// Health (no auth)
	var dbPinger health.DBPinger
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			dbPinger = sqlDB
		}
	}
	healthHandlers := &health.Handlers{Rdb: rdb, DB: dbPinger, MLURL: cfg.MLURL}
	app.Get("/", healthHandlers.Live)
	app.Get("/health/json", healthHandlers.JSON)

	// Auth (no auth middleware)
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{UserFinder: userFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	// Protected modules
	if db != nil && rdb != nil {
		publisher := &events.Publisher{Rdb: rdb}
		deletionGuard := &guard.DeletionGuard{DB: db}
		outputs := &fraud.OutputStore{Rdb: rdb}
		provider := fraud.NewHTTPProvider(cfg.MLURL, cfg.MLTimeout)
		pipeline := fraud.NewPipeline(db, provider, outputs, cfg)

		// Portfolios
		portfolioHandlers := &portfolios.Handlers{
			Service: &portfolios.Service{DB: db, Guard: deletionGuard},
			Events:  publisher,
		}
		portfolioGroup := app.Group("/api/v1/portfolio", middleware.RequireAuth())
		portfolioGroup.Get("/list", portfolioHandlers.List)
		portfolioGroup.Post("/create", portfolioHandlers.Create)
		portfolioGroup.Delete("/:id", portfolioHandlers.Delete)

		// Holdings
		holdingsService := &holdings.Service{DB: db, Guard: deletionGuard}
		holdingsHandlers := &holdings.Handlers{Service: holdingsService}
		portfolioGroup.Get("/:portfolioId/holdings", holdingsHandlers.List)
		holdingsGroup := app.Group("/api/v1/holdings", middleware.RequireAuth())
		holdingsGroup.Post("/create", holdingsHandlers.Create)
		holdingsGroup.Delete("/:id", holdingsHandlers.Delete)

		// Transactions (write path + fraud scoring)
		txHandlers := &transactions.Handlers{
			Service: &transactions.Service{
				DB:       db,
				Ledger:   ledger.NewService(db),
				Pipeline: pipeline,
				Holdings: holdingsService,
				Events:   publisher,
			},
		}
		txGroup := app.Group("/api/v1/transactions", middleware.RequireAuth())
		txGroup.Post("/add", txHandlers.Add)
		txGroup.Delete("/:id", txHandlers.Delete)
		holdingsGroup.Get("/:holdingId/transactions", txHandlers.List)

		// Risk alerts
		alertHandlers := &alerts.Handlers{Service: &alerts.Service{DB: db}}
		alertGroup := app.Group("/api/v1/alerts", middleware.RequireAuth())
		alertGroup.Get("/", alertHandlers.List)
		alertGroup.Patch("/resolve-all", alertHandlers.ResolveAll)
		alertGroup.Patch("/:id/resolve", alertHandlers.Resolve)

		// Fraud analytics
		fraudHandlers := &fraud.Handlers{
			Service:  &fraud.AnalyticsService{DB: db, Outputs: outputs},
			Provider: provider,
		}
		fraudGroup := app.Group("/api/v1/fraud", middleware.RequireAuth())
		fraudGroup.Get("/stats", fraudHandlers.GetStats)
		fraudGroup.Get("/cases", fraudHandlers.GetCases)
		fraudGroup.Get("/history", fraudHandlers.GetHistory)
		fraudGroup.Get("/geo", fraudHandlers.GetGeo)
		fraudGroup.Get("/detail/:txnId", fraudHandlers.GetDetail)
		fraudGroup.Post("/test", fraudHandlers.TestScore)
	}

	return app, db, rdb, nil
}
