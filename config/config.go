package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Log         LogConfig
	Admin       AdminConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// StorageConfig selects and configures the bucket holding exam page scans.
type StorageConfig struct {
	Driver          string // "minio" or "oss"
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
}

// RedisConfig is optional: without an address the in-memory results store is used.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ScoreTTL time.Duration
}

// RabbitMQConfig is optional: without a URI events are only logged.
type RabbitMQConfig struct {
	URI        string
	Exchange   string
	ScoreQueue string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdminConfig seeds the first admin account when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "db"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "exam_review"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			AccessTokenTTL: getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnv("STORAGE_DRIVER", "minio")),
			Endpoint:        getEnv("STORAGE_ENDPOINT", "minio:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Bucket:          getEnv("STORAGE_BUCKET", "exams"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			ScoreTTL: getEnvAsDuration("SCORE_TTL", 30*24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URI:        getEnv("RABBITMQ_URI", ""),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "exam.events"),
			ScoreQueue: getEnv("RABBITMQ_SCORE_QUEUE", "score.processed"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	switch c.Storage.Driver {
	case "minio", "oss":
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be one of: minio, oss"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET environment variable is required"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			logrus.Warnf("Error converting %s to int: %v", key, err)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			logrus.Warnf("Error converting %s to bool: %v", key, err)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Error converting %s to duration: %v", key, err)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
