package models

import (
	"errors"
	"time"
)

const (
	TestTypeExam     = "exam"
	TestTypePractice = "practice"

	TestStatusDraft     = "draft"
	TestStatusPublished = "published"
	TestStatusClosed    = "closed"
)

type Test struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	StartTime   *time.Time `json:"start_time"` // nil for practice tests without a window
	DueTime     *time.Time `json:"due_time"`
	Duration    int        `json:"duration"` // minutes
	DocumentURL *string    `json:"document_url"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	Questions   []Question `json:"questions,omitempty"`
}

type CreateTestRequest struct {
	Title       string     `json:"title" binding:"required"`
	Type        string     `json:"type" binding:"required,oneof=exam practice"`
	StartTime   *time.Time `json:"start_time"`
	DueTime     *time.Time `json:"due_time"`
	Duration    int        `json:"duration" binding:"min=0"`
	DocumentURL *string    `json:"document_url"`
	Status      string     `json:"status" binding:"omitempty,oneof=draft published closed"`
}

// Validate checks the scheduling window. Exams need both ends; practice
// tests may leave either open.
func (r *CreateTestRequest) Validate() error {
	if r.Type == TestTypeExam && (r.StartTime == nil || r.DueTime == nil) {
		return errors.New("exam tests require start_time and due_time")
	}
	if r.StartTime != nil && r.DueTime != nil && !r.DueTime.After(*r.StartTime) {
		return errors.New("due_time must be after start_time")
	}
	return nil
}

// Open reports whether a trial may be started at now.
func (t *Test) Open(now time.Time) bool {
	if t.Type != TestTypeExam {
		return true
	}
	if t.StartTime != nil && now.Before(*t.StartTime) {
		return false
	}
	if t.DueTime != nil && now.After(*t.DueTime) {
		return false
	}
	return true
}

// Question is returned to candidates without its correct option.
type Question struct {
	ID            int      `json:"id"`
	TestID        string   `json:"test_id"`
	Position      int      `json:"position"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"-"`
}

type CreateQuestionsRequest struct {
	Questions []NewQuestion `json:"questions" binding:"required,min=1,dive"`
}

type NewQuestion struct {
	Position      int      `json:"position" binding:"required,min=1"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option" binding:"required,max=16"`
}

type PagesResponse struct {
	Pages      []string `json:"pages"`
	TotalPages int      `json:"totalPages"`
}
