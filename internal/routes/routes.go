package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careshift/backend/internal/handlers"
	"github.com/careshift/backend/internal/middleware"
)

// RegisterVerificationRoutes registers the verification API routes
func RegisterVerificationRoutes(router *gin.Engine, verificationHandler *handlers.VerificationHandler, rateLimiter *middleware.RateLimiter) {
	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		workerGroup := v1.Group("/workers/:worker_id")
		{
			// Submissions trigger billable calls to external providers,
			// so they carry a tighter per-worker limit.
			workerGroup.POST("/verifications", rateLimiter.SubmissionRateLimiterMiddleware(), verificationHandler.InitiateVerification)
			workerGroup.POST("/verifications/all", rateLimiter.SubmissionRateLimiterMiddleware(), verificationHandler.InitiateAllVerifications)
			workerGroup.GET("/verifications", verificationHandler.ListWorkerVerifications)
			workerGroup.GET("/status", verificationHandler.GetWorkerStatus)
		}

		verificationGroup := v1.Group("/verifications/:id")
		{
			verificationGroup.GET("", verificationHandler.CheckVerificationStatus)
			verificationGroup.POST("/recheck", verificationHandler.RecheckVerification)
		}
	}
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
}
