package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"exam_review_backend/events"
	"exam_review_backend/logger"
	"exam_review_backend/middleware"
	"exam_review_backend/models"
	"exam_review_backend/scores"

	"github.com/gin-gonic/gin"
)

type TrialHandler struct {
	db        *sql.DB
	publisher events.Publisher
	results   scores.Store
	now       func() time.Time
}

func NewTrialHandler(db *sql.DB, publisher events.Publisher, results scores.Store) *TrialHandler {
	return &TrialHandler{db: db, publisher: publisher, results: results, now: time.Now}
}

func (h *TrialHandler) StartTrial(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetInt(middleware.ContextUserID)

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
	if test.Status == models.TestStatusClosed || !test.Open(h.now()) {
		c.JSON(http.StatusConflict, gin.H{"error": "Test is not open"})
		return
	}

	trial := models.Trial{TestID: test.ID, UserID: userID}
	err = h.db.QueryRowContext(ctx,
		`INSERT INTO trials (test_id, user_id) VALUES ($1, $2) RETURNING id, started_at`,
		test.ID, userID,
	).Scan(&trial.ID, &trial.StartedAt)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error creating trial")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start trial"})
		return
	}

	c.JSON(http.StatusCreated, trial)
}

func (h *TrialHandler) SubmitResponses(c *gin.Context) {
	trial, ok := h.ownedTrial(c, false)
	if !ok {
		return
	}
	if trial.SubmittedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial already submitted"})
		return
	}

	var req models.SubmitResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// Lock the trial row so a concurrent submit cannot slip in before commit.
	var submittedAt sql.NullTime
	if err := tx.QueryRowContext(ctx,
		`SELECT submitted_at FROM trials WHERE id = $1 FOR UPDATE`, trial.ID,
	).Scan(&submittedAt); err != nil {
		logger.FromContext(c).WithError(err).Error("error locking trial")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save responses"})
		return
	}
	if submittedAt.Valid {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial already submitted"})
		return
	}

	for _, r := range req.Responses {
		// The SELECT yields no row when the question belongs to another test.
		result, err := tx.ExecContext(ctx, `
			INSERT INTO trial_responses (trial_id, question_id, chosen_option)
			SELECT $1, q.id, $3 FROM questions q WHERE q.id = $2 AND q.test_id = $4
			ON CONFLICT (trial_id, question_id)
			DO UPDATE SET chosen_option = EXCLUDED.chosen_option, answered_at = CURRENT_TIMESTAMP
		`, trial.ID, r.QuestionID, r.ChosenOption, trial.TestID)
		if err != nil {
			logger.FromContext(c).WithError(err).Error("error saving response")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save responses"})
			return
		}
		affected, err := result.RowsAffected()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify responses"})
			return
		}
		if affected == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Question %d does not belong to this test", r.QuestionID)})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save responses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trial_id": trial.ID, "saved": len(req.Responses)})
}

func (h *TrialHandler) SubmitTrial(c *gin.Context) {
	trial, ok := h.ownedTrial(c, false)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var submittedAt time.Time
	err := h.db.QueryRowContext(ctx,
		`UPDATE trials SET submitted_at = CURRENT_TIMESTAMP WHERE id = $1 AND submitted_at IS NULL RETURNING submitted_at`,
		trial.ID,
	).Scan(&submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial already submitted"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error submitting trial")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit trial"})
		return
	}
	trial.SubmittedAt = &submittedAt

	// Scoring happens downstream; a broker outage must not fail the submission.
	if err := h.publisher.Publish(ctx, events.TrialSubmitted, events.TrialSubmittedPayload{
		TrialID:     trial.ID,
		TestID:      trial.TestID,
		UserID:      trial.UserID,
		SubmittedAt: submittedAt,
	}); err != nil {
		logger.FromContext(c).WithError(err).WithField("trial_id", trial.ID).Error("error publishing trial.submitted")
	}

	c.JSON(http.StatusOK, trial)
}

// GetReview lists every question of the test in question id order next to
// the caller's answer and the answer key.
func (h *TrialHandler) GetReview(c *gin.Context) {
	trial, ok := h.ownedTrial(c, true)
	if !ok {
		return
	}
	if trial.SubmittedAt == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial has not been submitted"})
		return
	}

	rows, err := h.db.QueryContext(c.Request.Context(), `
		SELECT q.id, q.position, q.prompt, q.correct_option, r.chosen_option
		FROM questions q
		LEFT JOIN trial_responses r ON r.question_id = q.id AND r.trial_id = $1
		WHERE q.test_id = $2
		ORDER BY q.id
	`, trial.ID, trial.TestID)
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error fetching review")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch review"})
		return
	}
	defer rows.Close()

	review := models.Review{TrialID: trial.ID, TestID: trial.TestID, Items: []models.ReviewItem{}}
	for rows.Next() {
		var item models.ReviewItem
		if err := rows.Scan(&item.QuestionID, &item.Position, &item.Prompt, &item.CorrectOption, &item.ChosenOption); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan review"})
			return
		}
		item.IsCorrect = item.ChosenOption != nil && *item.ChosenOption == item.CorrectOption
		if item.IsCorrect {
			review.Correct++
		}
		review.Items = append(review.Items, item)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch review"})
		return
	}
	review.Total = len(review.Items)

	c.JSON(http.StatusOK, review)
}

// GetResult returns the processed score written by the scoring pipeline.
func (h *TrialHandler) GetResult(c *gin.Context) {
	trial, ok := h.ownedTrial(c, true)
	if !ok {
		return
	}

	score, err := h.results.Get(c.Request.Context(), trial.ID)
	if errors.Is(err, scores.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Result not available"})
		return
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error reading processed score")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch result"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": score})
}

// ownedTrial loads the trial named in the path and checks it belongs to the
// caller. With allowAdmin set, admins may load any trial. It writes the error
// response itself.
func (h *TrialHandler) ownedTrial(c *gin.Context, allowAdmin bool) (*models.Trial, bool) {
	trialID, err := strconv.Atoi(c.Param("trialId"))
	if err != nil || trialID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trialId parameter"})
		return nil, false
	}

	trial, err := loadTrial(c.Request.Context(), h.db, trialID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trial not found"})
		return nil, false
	}
	if err != nil {
		logger.FromContext(c).WithError(err).Error("error fetching trial")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trial"})
		return nil, false
	}

	isAdmin := allowAdmin && c.GetString(middleware.ContextUserRole) == models.RoleAdmin
	if trial.UserID != c.GetInt(middleware.ContextUserID) && !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Trial belongs to another user"})
		return nil, false
	}
	return trial, true
}

func loadTrial(ctx context.Context, db *sql.DB, trialID int) (*models.Trial, error) {
	var t models.Trial
	err := db.QueryRowContext(ctx,
		`SELECT id, test_id, user_id, started_at, submitted_at FROM trials WHERE id = $1`,
		trialID,
	).Scan(&t.ID, &t.TestID, &t.UserID, &t.StartedAt, &t.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
