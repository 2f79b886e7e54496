package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shoppos/backend/internal/analytics"
	"github.com/shoppos/backend/internal/auth"
	"github.com/shoppos/backend/internal/category"
	"github.com/shoppos/backend/internal/inventory"
	"github.com/shoppos/backend/internal/product"
	"github.com/shoppos/backend/internal/reports"
	"github.com/shoppos/backend/internal/sale"
	"github.com/shoppos/backend/internal/shop"
	"github.com/shoppos/backend/pkg/config"
	"github.com/shoppos/backend/pkg/database"
	"github.com/shoppos/backend/pkg/logger"
	"github.com/shoppos/backend/pkg/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router
	r := gin.Default()

	// Middleware
	r.Use(middleware.CORS())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db, cfg)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.RefreshToken)

		// Google OAuth routes
		v1.GET("/auth/google", authHandler.GoogleLogin)
		v1.GET("/auth/google/callback", authHandler.GoogleCallback)

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired(cfg.JWT.Secret))
		{
			// Auth - current user
			protected.GET("/auth/me", authHandler.GetMe)
			protected.POST("/auth/change-password", authHandler.ChangePassword)

			// Dashboard routes
			analyticsHandler := analytics.NewHandler(db)
			protected.GET("/dashboard/stats", analyticsHandler.GetDashboardStats)
			protected.GET("/dashboard/top-products", analyticsHandler.GetTopProducts)
			protected.GET("/dashboard/sales-chart", analyticsHandler.GetSalesChart)
			protected.GET("/dashboard/recent-sales", analyticsHandler.GetRecentSales)

			// Product routes
			productHandler := product.NewHandler(db)
			protected.GET("/products", productHandler.List)
			protected.POST("/products", productHandler.Create)
			protected.GET("/products/:id", productHandler.Get)
			protected.PUT("/products/:id", productHandler.Update)
			protected.DELETE("/products/:id", productHandler.Delete)

			// Category routes
			categoryHandler := category.NewHandler(db)
			protected.GET("/categories", categoryHandler.List)
			protected.POST("/categories", categoryHandler.Create)
			protected.PUT("/categories/:id", categoryHandler.Update)
			protected.DELETE("/categories/:id", categoryHandler.Delete)

			// Sale routes
			saleHandler := sale.NewHandler(db, zlog)
			protected.GET("/sales", saleHandler.List)
			protected.POST("/sales", saleHandler.Create)
			protected.GET("/sales/:id", saleHandler.Get)
			protected.POST("/sales/:id/refund",
				middleware.RequireRole("owner", "admin"), saleHandler.Refund)

			// Reports routes
			reportsHandler := reports.NewHandler(db)
			protected.GET("/reports/sales", reportsHandler.GetSalesReport)
			protected.GET("/reports/products", reportsHandler.GetProductSalesReport)

			// Inventory routes
			inventoryHandler := inventory.NewHandler(db)
			protected.GET("/inventory", inventoryHandler.GetInventory)
			protected.GET("/inventory/summary", inventoryHandler.GetSummary)
			protected.GET("/inventory/alerts", inventoryHandler.GetAlerts)
			protected.GET("/inventory/logs", inventoryHandler.ListLogs)
			protected.PUT("/inventory/:id/stock",
				middleware.RequireRole("owner", "admin", "inventory_manager"), inventoryHandler.AdjustStock)

			importHandler := inventory.NewImportHandler(db)
			protected.POST("/inventory/import",
				middleware.RequireRole("owner", "admin", "inventory_manager"), importHandler.ImportFile)
			protected.GET("/inventory/import/template", importHandler.DownloadTemplate)

			// Shop settings routes
			shopHandler := shop.NewHandler(db)
			protected.GET("/shop", shopHandler.Get)
			protected.PUT("/shop/settings",
				middleware.RequireRole("owner", "admin"), shopHandler.UpdateSettings)
		}
	}

	// Start server
	zlog.Info("server starting", zap.String("port", cfg.App.Port))
	if err := r.Run(":" + cfg.App.Port); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}
