package models

import "time"

type Trial struct {
	ID          int        `json:"id"`
	TestID      string     `json:"test_id"`
	UserID      int        `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

type SubmitResponsesRequest struct {
	Responses []Response `json:"responses" binding:"required,min=1,dive"`
}

type Response struct {
	QuestionID   int    `json:"question_id" binding:"required"`
	ChosenOption string `json:"chosen_option" binding:"required,max=16"`
}

// ReviewItem compares one answer with the answer key.
type ReviewItem struct {
	QuestionID    int     `json:"question_id"`
	Position      int     `json:"position"`
	Prompt        string  `json:"prompt"`
	ChosenOption  *string `json:"chosen_option"`
	CorrectOption string  `json:"correct_option"`
	IsCorrect     bool    `json:"is_correct"`
}

type Review struct {
	TrialID int          `json:"trial_id"`
	TestID  string       `json:"test_id"`
	Items   []ReviewItem `json:"items"`
	Correct int          `json:"correct"`
	Total   int          `json:"total"`
}
