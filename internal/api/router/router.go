package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/papergen/papergen-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "paper-api-service",
		})
	})

	paperHandler := handler.NewPaperHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		papers := v1.Group("/papers")
		{
			// POST /api/v1/papers - Submit a paper generation request
			papers.POST("", paperHandler.GeneratePaper)

			// GET /api/v1/papers - List papers with filtering and pagination
			papers.GET("", paperHandler.ListPapers)

			// GET /api/v1/papers/:job_id - Get job status and stage progress
			papers.GET("/:job_id", paperHandler.GetPaperStatus)

			// GET /api/v1/papers/:job_id/result - Get the finished paper
			papers.GET("/:job_id/result", paperHandler.GetPaperResult)
		}
	}

	return r
}
