package db

import (
	"database/sql"
	"fmt"
)

// SeedAdmin creates the first admin account when no admin exists yet.
// passwordHash must already be a bcrypt hash.
func SeedAdmin(db *sql.DB, email, passwordHash string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE role = 'admin')`).Scan(&exists); err != nil {
		return fmt.Errorf("error checking admin account: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(
		`INSERT INTO users (email, username, password_hash, role) VALUES ($1, 'admin', $2, 'admin')
		 ON CONFLICT (email) DO UPDATE SET role = 'admin'`,
		email, passwordHash,
	); err != nil {
		return fmt.Errorf("error seeding admin account: %w", err)
	}

	// Welcome broadcast so the feed is not empty on a fresh install.
	if _, err := tx.Exec(
		`INSERT INTO notifications (user_id, title, message) VALUES (NULL, $1, $2)`,
		"Welcome", "Exams and practice tests will be announced here.",
	); err != nil {
		return fmt.Errorf("error seeding notifications: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
