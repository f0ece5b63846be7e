package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exam_review_backend/config"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Connect opens the Postgres pool and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	logrus.WithFields(logrus.Fields{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.Name,
	}).Info("connecting to database")

	database, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return database, nil
}
