package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"exam_review_backend/logger"
	"exam_review_backend/middleware"
	"exam_review_backend/models"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	db     *sql.DB
	tokens *middleware.TokenService
}

func NewUserHandler(db *sql.DB, tokens *middleware.TokenService) *UserHandler {
	return &UserHandler{db: db, tokens: tokens}
}

// GetUser fetches the caller's profile
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	user, err := h.getUser(c.Request.Context(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error getting user profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user info"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == nil && req.FirstName == nil && req.LastName == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	var (
		user     models.User
		username sql.NullString
	)
	err := h.db.QueryRowContext(c.Request.Context(), `
		UPDATE users
		SET username = COALESCE($1, username),
		    first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name)
		WHERE id = $4
		RETURNING id, email, username, first_name, last_name, role, created_at
	`, req.Username, req.FirstName, req.LastName, userID,
	).Scan(&user.ID, &user.Email, &username, &user.FirstName, &user.LastName, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error updating profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	user.Username = username.String

	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password and signs out every other session.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	if req.NewPassword == req.CurrentPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must differ from the current password"})
		return
	}

	ctx := c.Request.Context()
	var hashedPassword string
	err := h.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&hashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error reading password hash")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify password"})
		return
	}

	if !middleware.VerifyPassword(hashedPassword, req.CurrentPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}

	newHash, err := middleware.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	if _, err := h.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, newHash, userID); err != nil {
		logger.FromContext(c).WithError(err).Error("error updating password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	if err := h.tokens.RevokeAll(ctx, userID); err != nil {
		logger.FromContext(c).WithError(err).Warn("error revoking refresh tokens")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (h *UserHandler) getUser(ctx context.Context, userID int) (*models.User, error) {
	var (
		user     models.User
		username sql.NullString
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT id, email, username, first_name, last_name, role, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &username, &user.FirstName, &user.LastName, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Username = username.String
	return &user, nil
}

// sessionUser reads the authenticated user id, answering 401 when absent.
func sessionUser(c *gin.Context) (int, bool) {
	userID := c.GetInt(middleware.ContextUserID)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}
