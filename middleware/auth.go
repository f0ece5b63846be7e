package middleware

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"exam_review_backend/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"

	refreshTokenTTL = 30 * 24 * time.Hour
)

// AuthMiddleware validates the bearer access token and loads the caller's
// current role. A token whose user no longer exists still passes; handlers
// report the missing user themselves.
func AuthMiddleware(db *sql.DB, jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be in the format: Bearer {token}"})
			return
		}

		claims, err := ParseAccessToken(parts[1], jwtSecret)
		if err != nil {
			logrus.WithError(err).Debug("token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		var role string
		err = db.QueryRowContext(c.Request.Context(),
			`SELECT role FROM users WHERE id = $1`, claims.UserID,
		).Scan(&role)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			logrus.WithError(err).Error("error getting user role")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user role"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, role)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

func ParseAccessToken(tokenString string, jwtSecret []byte) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// TokenService handles token generation and validation
type TokenService struct {
	DB             *sql.DB
	JWTSecret      []byte
	AccessTokenTTL time.Duration
}

func NewTokenService(db *sql.DB, jwtSecret []byte, accessTokenTTL time.Duration) *TokenService {
	return &TokenService{
		DB:             db,
		JWTSecret:      jwtSecret,
		AccessTokenTTL: accessTokenTTL,
	}
}

func (s *TokenService) SignAccessToken(userID int, role string) (string, error) {
	now := time.Now()
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return accessToken.SignedString(s.JWTSecret)
}

// GenerateTokens creates a new access and refresh token pair
func (s *TokenService) GenerateTokens(ctx context.Context, userID int, role string) (*models.TokenPair, error) {
	accessTokenString, err := s.SignAccessToken(userID, role)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}

	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	refreshToken := hex.EncodeToString(bytes)

	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, refreshToken, time.Now().Add(refreshTokenTTL),
	); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &models.TokenPair{AccessToken: accessTokenString, RefreshToken: refreshToken}, nil
}

// ValidateRefreshToken returns the owner of a live refresh token.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, refreshToken string) (int, string, error) {
	var (
		userID int
		role   string
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT rt.user_id, u.role FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token = $1 AND rt.expires_at > NOW()`,
		refreshToken,
	).Scan(&userID, &role)
	if err != nil {
		return 0, "", err
	}
	return userID, role, nil
}

func (s *TokenService) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, refreshToken)
	return err
}

// RevokeAll drops every refresh token of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID int) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

// VerifyPassword checks if a password matches the hashed version
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// HashPassword creates a bcrypt hash of a password
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
