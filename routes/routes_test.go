package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam_review_backend/events"
	"exam_review_backend/middleware"
	"exam_review_backend/pages"
	"exam_review_backend/scores"
	"exam_review_backend/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("routes-secret")

type staticBucket []string

func (b staticBucket) List(context.Context, string, int) ([]storage.Object, error) {
	objects := make([]storage.Object, 0, len(b))
	for _, name := range b {
		objects = append(objects, storage.Object{Name: name, Size: 1})
	}
	return objects, nil
}

func (b staticBucket) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func setup(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := gin.New()
	SetupRoutes(r, Dependencies{
		DB:             db,
		JWTSecret:      secret,
		AccessTokenTTL: time.Hour,
		Pages:          pages.NewResolver(staticBucket{"page-1.jpg"}),
		Publisher:      events.NopPublisher{},
		Scores:         scores.NewDevStore(),
	})
	return r, mock
}

func bearer(t *testing.T, userID int, role string) string {
	token, err := middleware.NewTokenService(nil, secret, time.Hour).SignAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := setup(t)

	for _, path := range []string{"/api/exam", "/api/exam/00001/pages", "/api/notifications", "/api/user"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestPagesRouteWithToken(t *testing.T) {
	r, mock := setup(t)
	mock.ExpectQuery(`SELECT role FROM users`).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))

	req := httptest.NewRequest(http.MethodGet, "/api/exam/00001/pages", nil)
	req.Header.Set("Authorization", bearer(t, 5, "student"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pages":["https://signed.example/exam-00001/page-1.jpg"],"totalPages":1}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRoutesRejectStudents(t *testing.T) {
	r, mock := setup(t)
	mock.ExpectQuery(`SELECT role FROM users`).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))

	req := httptest.NewRequest(http.MethodPost, "/api/exam", nil)
	// Stale admin claim; the stored role wins.
	req.Header.Set("Authorization", bearer(t, 5, "admin"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setup(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
