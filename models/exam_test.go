package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreateTestRequestValidate(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	due := start.Add(2 * time.Hour)

	tests := []struct {
		name    string
		req     CreateTestRequest
		wantErr bool
	}{
		{"exam with window", CreateTestRequest{Type: TestTypeExam, StartTime: &start, DueTime: &due}, false},
		{"exam without due time", CreateTestRequest{Type: TestTypeExam, StartTime: &start}, true},
		{"exam with inverted window", CreateTestRequest{Type: TestTypeExam, StartTime: &due, DueTime: &start}, true},
		{"practice without window", CreateTestRequest{Type: TestTypePractice}, false},
		{"practice with inverted window", CreateTestRequest{Type: TestTypePractice, StartTime: &due, DueTime: &start}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTestOpen(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	due := start.Add(2 * time.Hour)

	exam := Test{Type: TestTypeExam, StartTime: &start, DueTime: &due}
	assert.False(t, exam.Open(start.Add(-time.Minute)))
	assert.True(t, exam.Open(start.Add(time.Hour)))
	assert.False(t, exam.Open(due.Add(time.Minute)))

	practice := Test{Type: TestTypePractice}
	assert.True(t, practice.Open(start.Add(-24*time.Hour)))
}
