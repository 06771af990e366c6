package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prepstack/practice-service/internal/config"
	"github.com/prepstack/practice-service/internal/repositories"
	"github.com/prepstack/practice-service/internal/services"
	"github.com/prepstack/practice-service/internal/utils"
	"github.com/prepstack/practice-service/internal/validator"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), serviceManager.Submission(), validator, logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		// Attempt routes take optional authentication: anonymous callers get
		// a session bound to the attempt ID, logged-in callers get ownership.
		attempts := v1.Group("/attempts")
		attempts.Use(hm.authMiddleware.OptionalAuthMiddleware())
		{
			attempts.POST("", hm.attemptHandler.CreateAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.DELETE("/:id", hm.attemptHandler.DeleteAttempt)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "practice-service",
		})
	})
}
