package events

import "time"

const (
	TrialSubmitted = "trial.submitted"
	ScoreProcessed = "score.processed"
)

// Event is the envelope published on the exchange.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type TrialSubmittedPayload struct {
	TrialID     int       `json:"trial_id"`
	TestID      string    `json:"test_id"`
	UserID      int       `json:"user_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
