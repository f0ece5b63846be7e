package scores

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("processed score not found")

// ProcessedScore is the payload the external scoring pipeline produces for a trial.
type ProcessedScore struct {
	TrialID       int       `json:"trial_id"`
	Theta         float64   `json:"theta"`
	StandardError float64   `json:"standard_error"`
	RawScore      int       `json:"raw_score"`
	MaxScore      int       `json:"max_score"`
	ScaledScore   float64   `json:"scaled_score"`
	ComputedAt    time.Time `json:"computed_at"`
}

func (s *ProcessedScore) Validate() error {
	if s.TrialID <= 0 {
		return errors.New("trial_id must be positive")
	}
	if s.RawScore < 0 || s.MaxScore < 0 || s.RawScore > s.MaxScore {
		return errors.New("raw_score must be between 0 and max_score")
	}
	return nil
}

type Store interface {
	Save(ctx context.Context, score *ProcessedScore) error
	Get(ctx context.Context, trialID int) (*ProcessedScore, error)
}

// DevStore keeps scores in memory. It stands in for the results store in
// development and tests.
type DevStore struct {
	mu     sync.RWMutex
	scores map[int]ProcessedScore
}

func NewDevStore() *DevStore {
	return &DevStore{scores: make(map[int]ProcessedScore)}
}

func (s *DevStore) Save(_ context.Context, score *ProcessedScore) error {
	if err := score.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.TrialID] = *score
	return nil
}

func (s *DevStore) Get(_ context.Context, trialID int) (*ProcessedScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[trialID]
	if !ok {
		return nil, ErrNotFound
	}
	return &score, nil
}
