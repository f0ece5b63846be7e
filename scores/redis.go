package scores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "processed_score:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func scoreKey(trialID int) string {
	return keyPrefix + strconv.Itoa(trialID)
}

func (s *RedisStore) Save(ctx context.Context, score *ProcessedScore) error {
	if err := score.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("error encoding processed score: %w", err)
	}
	if err := s.client.Set(ctx, scoreKey(score.TrialID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("error saving processed score: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, trialID int) (*ProcessedScore, error) {
	raw, err := s.client.Get(ctx, scoreKey(trialID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading processed score: %w", err)
	}

	var score ProcessedScore
	if err := json.Unmarshal(raw, &score); err != nil {
		return nil, fmt.Errorf("error decoding processed score: %w", err)
	}
	return &score, nil
}
