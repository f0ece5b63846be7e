package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	database "exam_review_backend/db"
	"exam_review_backend/logger"
	"exam_review_backend/middleware"
	"exam_review_backend/models"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	db           *sql.DB
	tokenService *middleware.TokenService
}

func NewAuthHandler(db *sql.DB, tokenService *middleware.TokenService) *AuthHandler {
	return &AuthHandler{
		db:           db,
		tokenService: tokenService,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := middleware.HashPassword(req.Password)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error hashing password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	ctx := c.Request.Context()
	var userID int
	err = h.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, username, first_name, last_name, role)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		req.Email, hashedPassword, req.Username, req.FirstName, req.LastName, models.RoleStudent,
	).Scan(&userID)
	if database.IsUniqueViolation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error creating user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	tokens, err := h.tokenService.GenerateTokens(ctx, userID, models.RoleStudent)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error generating tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusCreated, tokens)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		userID         int
		hashedPassword string
		role           string
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, password_hash, role FROM users WHERE email = $1`, req.Email,
	).Scan(&userID, &hashedPassword, &role)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !middleware.VerifyPassword(hashedPassword, req.Password)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error querying user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify credentials"})
		return
	}

	tokens, err := h.tokenService.GenerateTokens(ctx, userID, role)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error generating tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID, role, err := h.tokenService.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	tokens, err := h.tokenService.GenerateTokens(ctx, userID, role)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error generating tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	if err := h.tokenService.InvalidateRefreshToken(ctx, req.RefreshToken); err != nil {
		logger.FromContext(c).WithError(err).Warn("error invalidating old refresh token")
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No refresh token provided"})
		return
	}

	if err := h.tokenService.InvalidateRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		logger.FromContext(c).WithError(err).Error("error invalidating refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
