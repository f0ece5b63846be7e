package routes

import (
	"database/sql"
	"time"

	"exam_review_backend/events"
	"exam_review_backend/handlers"
	"exam_review_backend/middleware"
	"exam_review_backend/scores"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	DB             *sql.DB
	JWTSecret      []byte
	AccessTokenTTL time.Duration
	Pages          handlers.PageResolver
	Publisher      events.Publisher
	Scores         scores.Store
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	tokenService := middleware.NewTokenService(deps.DB, deps.JWTSecret, deps.AccessTokenTTL)

	authHandler := handlers.NewAuthHandler(deps.DB, tokenService)
	userHandler := handlers.NewUserHandler(deps.DB, tokenService)
	examHandler := handlers.NewExamHandler(deps.DB, deps.Pages)
	trialHandler := handlers.NewTrialHandler(deps.DB, deps.Publisher, deps.Scores)
	notificationHandler := handlers.NewNotificationHandler(deps.DB)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authHandler.Logout)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.DB, deps.JWTSecret))
	admin := middleware.RequireAdmin()
	{
		// Exam routes
		api.GET("/exam", examHandler.GetTests)
		api.POST("/exam", admin, examHandler.CreateTest)
		api.GET("/exam/:testId", examHandler.GetTestByID)
		api.POST("/exam/:testId/questions", admin, examHandler.AddQuestions)
		api.GET("/exam/:testId/pages", examHandler.GetPages)
		api.POST("/exam/:testId/trials", trialHandler.StartTrial)

		// Trial routes
		api.POST("/trials/:trialId/responses", trialHandler.SubmitResponses)
		api.POST("/trials/:trialId/submit", trialHandler.SubmitTrial)
		api.GET("/trials/:trialId/review", trialHandler.GetReview)
		api.GET("/trials/:trialId/result", trialHandler.GetResult)

		// Notification routes
		api.GET("/notifications", notificationHandler.GetNotifications)
		api.POST("/notifications", admin, notificationHandler.CreateNotification)

		// User routes
		api.GET("/user", userHandler.GetUser)
		api.PATCH("/user", userHandler.UpdateProfile)
		api.PATCH("/user/password", userHandler.ChangePassword)
	}
}
