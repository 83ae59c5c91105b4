package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/invoiceguard/gst-invoice-verification/config"
	"github.com/invoiceguard/gst-invoice-verification/db"
	"github.com/invoiceguard/gst-invoice-verification/handler"
	"github.com/invoiceguard/gst-invoice-verification/pkg/logger"
	"github.com/invoiceguard/gst-invoice-verification/repository"
	"github.com/invoiceguard/gst-invoice-verification/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // use "json" for production
		EnableColor: true,
	})

	// Duplicate store; when disabled, duplicate checks degrade to INFO.
	var records repository.InvoiceRecordRepository
	if cfg.Database.Enabled {
		if err := db.Initialize(&cfg.Database); err != nil {
			logger.Fatal("Failed to initialize database", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", err)
			}
		}()

		if err := db.Migrate(&repository.InvoiceRecord{}); err != nil {
			logger.Fatal("Failed to run migrations", err)
		}
		records = repository.NewInvoiceRecordRepository(db.GetDB())
	} else {
		logger.Warn("Duplicate store disabled; duplicate checks will be informational only")
	}

	// Initialize service layer
	pdfProcessor := service.NewPDFProcessor()
	verificationService := service.NewVerificationService(pdfProcessor, records, &cfg.Scoring)

	// Initialize handler layer
	verifyHandler := handler.NewVerifyHandler(verificationService)

	// Setup Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.Default()
	router.Use(cors.Default())

	router.MaxMultipartMemory = cfg.Server.MaxFileSize

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "GST Invoice Verification",
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		invoice := api.Group("/invoice")
		{
			invoice.POST("/verify", verifyHandler.VerifyInvoice)
			invoice.POST("/verify-json", verifyHandler.VerifyInvoiceJSON)
		}
	}

	// Start server
	logger.Info("Starting GST Invoice Verification Service", map[string]interface{}{
		"port":        cfg.Server.Port,
		"environment": cfg.Server.Environment,
	})
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server", err)
	}
}
