package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exam_review_backend/pages"
	"exam_review_backend/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{"id", "title", "type", "start_time", "due_time", "duration", "document_url", "status", "created_at"}

type fakeResolver struct {
	result *pages.Result
	err    error
}

func (f fakeResolver) Resolve(context.Context, string) (*pages.Result, error) {
	return f.result, f.err
}

type memoryBucket map[string][]string

func (b memoryBucket) List(_ context.Context, folder string, _ int) ([]storage.Object, error) {
	var objects []storage.Object
	for _, name := range b[folder] {
		objects = append(objects, storage.Object{Name: name, Size: 1})
	}
	return objects, nil
}

func (b memoryBucket) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://cdn.example/%s?ttl=%d", key, int(expiry.Seconds())), nil
}

func newExamRouter(h *ExamHandler) *gin.Engine {
	r := gin.New()
	r.Use(withUser(1, "admin"))
	r.POST("/api/exam", h.CreateTest)
	r.GET("/api/exam", h.GetTests)
	r.GET("/api/exam/:testId", h.GetTestByID)
	r.POST("/api/exam/:testId/questions", h.AddQuestions)
	r.GET("/api/exam/:testId/pages", h.GetPages)
	return r
}

func TestGetPagesSuccess(t *testing.T) {
	bucket := memoryBucket{"exam-00003": {"page-10.jpg", "page-2.jpg", "page-1.jpg", "page-1.png"}}
	r := newExamRouter(NewExamHandler(nil, pages.NewResolver(bucket)))

	w := performRequest(r, http.MethodGet, "/api/exam/00003/pages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pages      []string `json:"pages"`
		TotalPages int      `json:"totalPages"`
	}
	decode(t, w, &body)
	assert.Equal(t, 3, body.TotalPages)
	assert.Equal(t, []string{
		"https://cdn.example/exam-00003/page-1.jpg?ttl=300",
		"https://cdn.example/exam-00003/page-2.jpg?ttl=300",
		"https://cdn.example/exam-00003/page-10.jpg?ttl=300",
	}, body.Pages)
}

func TestGetPagesErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"storage unavailable", fmt.Errorf("%w: %w", pages.ErrStorageUnavailable, errors.New("dial tcp")), http.StatusInternalServerError, "Failed to read storage folder"},
		{"folder not found", &pages.FolderNotFoundError{Folder: "exam-00009"}, http.StatusNotFound, "Folder not found: exam-00009"},
		{"missing parameter", pages.ErrMissingParameter, http.StatusBadRequest, "Missing testId parameter"},
		{"signing failure", errors.New("signing page-1.jpg: denied"), http.StatusInternalServerError, "Failed to generate page URLs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newExamRouter(NewExamHandler(nil, fakeResolver{err: tt.err}))
			w := performRequest(r, http.MethodGet, "/api/exam/00009/pages", nil)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			decode(t, w, &body)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestGetPagesNoPagesFound(t *testing.T) {
	bucket := memoryBucket{"exam-00004": {"scan.pdf", "page-1.tiff"}}
	r := newExamRouter(NewExamHandler(nil, pages.NewResolver(bucket)))

	w := performRequest(r, http.MethodGet, "/api/exam/00004/pages", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	// A 204 carries no body, so the message never reaches the client.
	assert.Empty(t, w.Body.String())
}

func TestGetPagesEmptyTestID(t *testing.T) {
	h := NewExamHandler(nil, pages.NewResolver(memoryBucket{}))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/exam//pages", nil)
	c.Params = gin.Params{{Key: "testId", Value: ""}}
	h.GetPages(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing testId parameter")
}

func TestCreateTest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	created := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(CAST\(id AS INTEGER\)\) FROM tests`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO tests`).
		WithArgs("00002", "Midterm", "exam", sqlmock.AnyArg(), sqlmock.AnyArg(), 90, nil, "draft").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`SELECT MAX\(CAST\(id AS INTEGER\)\) FROM tests`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO tests`).
		WithArgs("00003", "Midterm", "exam", sqlmock.AnyArg(), sqlmock.AnyArg(), 90, nil, "draft").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	w := performRequest(r, http.MethodPost, "/api/exam", map[string]any{
		"title":      "Midterm",
		"type":       "exam",
		"start_time": "2026-05-01T09:00:00Z",
		"due_time":   "2026-05-01T11:00:00Z",
		"duration":   90,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "00003", body["id"])
	assert.Equal(t, "draft", body["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTestValidation(t *testing.T) {
	r := newExamRouter(NewExamHandler(nil, nil))

	w := performRequest(r, http.MethodPost, "/api/exam", map[string]any{"title": "Final", "type": "exam"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/exam", map[string]any{"title": "Final", "type": "quiz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/exam", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTestDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	mock.ExpectQuery(`SELECT MAX`).WillReturnError(errors.New("relation \"tests\" does not exist"))

	w := performRequest(r, http.MethodPost, "/api/exam", map[string]any{"title": "Drill", "type": "practice"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Contains(t, body["error"], "does not exist")
}

func TestGetTestByIDHidesAnswerKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	mock.ExpectQuery(`FROM tests`).WithArgs("00001").
		WillReturnRows(sqlmock.NewRows(testColumns).AddRow("00001", "Drill", "practice", nil, nil, 30, nil, "published", time.Now()))
	mock.ExpectQuery(`FROM questions`).WithArgs("00001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "position", "prompt", "options"}).
			AddRow(1, 1, "2+2?", "{3,4,5}").
			AddRow(2, 2, "3+3?", "{5,6}"))

	w := performRequest(r, http.MethodGet, "/api/exam/00001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "correct_option"))

	var body struct {
		ID        string  `json:"id"`
		StartTime *string `json:"start_time"`
		Questions []struct {
			ID      int      `json:"id"`
			Options []string `json:"options"`
		} `json:"questions"`
	}
	decode(t, w, &body)
	assert.Equal(t, "00001", body.ID)
	assert.Nil(t, body.StartTime)
	require.Len(t, body.Questions, 2)
	assert.Equal(t, []string{"3", "4", "5"}, body.Questions[0].Options)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTestByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	mock.ExpectQuery(`FROM tests`).WithArgs("99999").WillReturnRows(sqlmock.NewRows(testColumns))

	w := performRequest(r, http.MethodGet, "/api/exam/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTestsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	mock.ExpectQuery(`FROM tests`).WithArgs("exam", "").
		WillReturnRows(sqlmock.NewRows(testColumns).
			AddRow("00002", "Final", "exam", time.Now(), time.Now().Add(time.Hour), 60, "https://docs.example/final.pdf", "published", time.Now()))

	w := performRequest(r, http.MethodGet, "/api/exam?type=exam", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []map[string]any `json:"data"`
	}
	decode(t, w, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "https://docs.example/final.pdf", body.Data[0]["document_url"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddQuestions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := newExamRouter(NewExamHandler(db, nil))

	mock.ExpectQuery(`FROM tests`).WithArgs("00001").
		WillReturnRows(sqlmock.NewRows(testColumns).AddRow("00001", "Drill", "practice", nil, nil, 30, nil, "draft", time.Now()))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO questions`).WithArgs("00001", 1, "2+2?", sqlmock.AnyArg(), "4").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`INSERT INTO questions`).WithArgs("00001", 2, "", sqlmock.AnyArg(), "B").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectCommit()

	w := performRequest(r, http.MethodPost, "/api/exam/00001/questions", map[string]any{
		"questions": []map[string]any{
			{"position": 1, "prompt": "2+2?", "options": []string{"3", "4"}, "correct_option": "4"},
			{"position": 2, "correct_option": "B"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"question_ids":[11,12]`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddQuestionsRejectsOversizedCorrectOption(t *testing.T) {
	r := newExamRouter(NewExamHandler(nil, nil))

	w := performRequest(r, http.MethodPost, "/api/exam/00001/questions", map[string]any{
		"questions": []map[string]any{{"position": 1, "correct_option": "seventeen chars!!"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
