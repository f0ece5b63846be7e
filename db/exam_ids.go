package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	TestIDWidth       = 5
	MaxTestIDAttempts = 5
	uniqueViolation   = "23505"
)

var ErrTestIDExhausted = errors.New("could not issue a unique test id")

type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func FormatTestID(n int) string {
	return fmt.Sprintf("%0*d", TestIDWidth, n)
}

// NextTestID reads the greatest numeric test id and returns its successor.
func NextTestID(ctx context.Context, q Querier) (string, error) {
	var last sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(CAST(id AS INTEGER)) FROM tests WHERE id ~ '^[0-9]+$'`,
	).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("error reading latest test id: %w", err)
	}
	return FormatTestID(int(last.Int64) + 1), nil
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// WithTestID issues a test id and runs insert with it, issuing a fresh id
// whenever insert hits the primary key of a concurrently created test.
func WithTestID(ctx context.Context, q Querier, insert func(id string) error) (string, error) {
	for attempt := 0; attempt < MaxTestIDAttempts; attempt++ {
		id, err := NextTestID(ctx, q)
		if err != nil {
			return "", err
		}
		err = insert(id)
		if err == nil {
			return id, nil
		}
		if !IsUniqueViolation(err) {
			return "", err
		}
	}
	return "", ErrTestIDExhausted
}
