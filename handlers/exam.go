package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	database "exam_review_backend/db"
	"exam_review_backend/logger"
	"exam_review_backend/middleware"
	"exam_review_backend/models"
	"exam_review_backend/pages"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

// PageResolver resolves the ordered signed page URLs of an exam.
type PageResolver interface {
	Resolve(ctx context.Context, examID string) (*pages.Result, error)
}

type ExamHandler struct {
	db       *sql.DB
	resolver PageResolver
}

func NewExamHandler(db *sql.DB, resolver PageResolver) *ExamHandler {
	return &ExamHandler{db: db, resolver: resolver}
}

func (h *ExamHandler) CreateTest(c *gin.Context) {
	var req models.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == "" {
		req.Status = models.TestStatusDraft
	}

	ctx := c.Request.Context()
	test := models.Test{
		Title:       req.Title,
		Type:        req.Type,
		StartTime:   req.StartTime,
		DueTime:     req.DueTime,
		Duration:    req.Duration,
		DocumentURL: req.DocumentURL,
		Status:      req.Status,
	}

	// Not in a transaction: a unique violation must not poison the retry.
	id, err := database.WithTestID(ctx, h.db, func(id string) error {
		return h.db.QueryRowContext(ctx, `
			INSERT INTO tests (id, title, type, start_time, due_time, duration, document_url, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`, id, test.Title, test.Type, test.StartTime, test.DueTime, test.Duration, test.DocumentURL, test.Status,
		).Scan(&test.CreatedAt)
	})
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error creating test")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	test.ID = id

	logger.FromContext(c).WithField("test_id", id).Info("test created")
	c.JSON(http.StatusCreated, test)
}

func (h *ExamHandler) GetTests(c *gin.Context) {
	query := `
		SELECT id, title, type, start_time, due_time, duration, document_url, status, created_at
		FROM tests
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
		ORDER BY id DESC
	`
	rows, err := h.db.QueryContext(c.Request.Context(), query, c.Query("type"), c.Query("status"))
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error fetching tests")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tests"})
		return
	}
	defer rows.Close()

	tests := []models.Test{}
	for rows.Next() {
		var t models.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Type, &t.StartTime, &t.DueTime, &t.Duration,
			&t.DocumentURL, &t.Status, &t.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan test"})
			return
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tests})
}

func (h *ExamHandler) GetTestByID(c *gin.Context) {
	ctx := c.Request.Context()
	test, err := loadTest(ctx, h.db, c.Param("testId"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error fetching test")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch test"})
		return
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, position, prompt, options
		FROM questions
		WHERE test_id = $1
		ORDER BY id
	`, test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch questions"})
		return
	}
	defer rows.Close()

	test.Questions = []models.Question{}
	for rows.Next() {
		q := models.Question{TestID: test.ID}
		if err := rows.Scan(&q.ID, &q.Position, &q.Prompt, pq.Array(&q.Options)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan question"})
			return
		}
		test.Questions = append(test.Questions, q)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch questions"})
		return
	}

	c.JSON(http.StatusOK, test)
}

// AddQuestions writes answer-key entries; an existing position is overwritten.
func (h *ExamHandler) AddQuestions(c *gin.Context) {
	var req models.CreateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	testID := c.Param("testId")
	if _, err := loadTest(ctx, h.db, testID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch test"})
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	ids := make([]int, 0, len(req.Questions))
	for _, q := range req.Questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		var id int
		err := tx.QueryRowContext(ctx, `
			INSERT INTO questions (test_id, position, prompt, options, correct_option)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (test_id, position)
			DO UPDATE SET prompt = EXCLUDED.prompt, options = EXCLUDED.options, correct_option = EXCLUDED.correct_option
			RETURNING id
		`, testID, q.Position, q.Prompt, pq.Array(options), q.CorrectOption).Scan(&id)
		if err != nil {
			logger.FromContext(c).WithError(err).Error("error creating question")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
			return
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save questions"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"test_id": testID, "question_ids": ids})
}

func (h *ExamHandler) GetPages(c *gin.Context) {
	result, err := h.resolver.Resolve(c.Request.Context(), c.Param("testId"))

	var notFound *pages.FolderNotFoundError
	switch {
	case err == nil:
	case errors.Is(err, pages.ErrMissingParameter):
		middleware.PageResolutions.WithLabelValues("missing_parameter").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing testId parameter"})
		return
	case errors.Is(err, pages.ErrStorageUnavailable):
		middleware.PageResolutions.WithLabelValues("storage_unavailable").Inc()
		logger.FromContext(c).WithError(err).Error("error listing exam folder")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read storage folder"})
		return
	case errors.As(err, &notFound):
		middleware.PageResolutions.WithLabelValues("folder_not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found: " + notFound.Folder})
		return
	case errors.Is(err, pages.ErrNoPagesFound):
		middleware.PageResolutions.WithLabelValues("no_pages").Inc()
		c.JSON(http.StatusNoContent, gin.H{"error": "No pages found"})
		return
	default:
		middleware.PageResolutions.WithLabelValues("sign_failed").Inc()
		logger.FromContext(c).WithError(err).Error("error signing exam pages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate page URLs"})
		return
	}

	middleware.PageResolutions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, models.PagesResponse{
		Pages:      result.Pages,
		TotalPages: len(result.Files),
	})
}

func loadTest(ctx context.Context, db *sql.DB, testID string) (*models.Test, error) {
	var t models.Test
	err := db.QueryRowContext(ctx, `
		SELECT id, title, type, start_time, due_time, duration, document_url, status, created_at
		FROM tests
		WHERE id = $1
	`, testID).Scan(&t.ID, &t.Title, &t.Type, &t.StartTime, &t.DueTime, &t.Duration,
		&t.DocumentURL, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
