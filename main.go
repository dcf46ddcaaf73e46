package main

import (
	"log"

	"github.com/gin-gonic/gin"

	controller "github.com/clauselens/backend/controller"
	"github.com/clauselens/backend/initializers"
	middleware "github.com/clauselens/backend/middleware"
	service "github.com/clauselens/backend/service"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Println("[WARN] No .env file found, relying on process environment")
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	docService, err := service.NewDocumentService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize document service: %s", err)
	}

	docController := controller.NewDocumentController(docService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	// Global rate limiter for most routes
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Upload and Q&A hit external providers, so they get stricter limits
	router.POST("/upload",
		middleware.StrictRateLimiter.Limit(),
		docController.UploadDocument)
	router.POST("/ask",
		middleware.StrictRateLimiter.Limit(),
		docController.Ask)

	// Polling and rendering
	router.GET("/document/:id", docController.GetDocument)
	router.GET("/pdf/:id", docController.GetPDF)

	// Dashboard and search
	router.GET("/documents", docController.GetAllDocuments)
	router.GET("/search", docController.SearchDocuments)

	// Healthcheck endpoint
	router.GET("/health", docController.Health)

	router.Run(":8080")
}
