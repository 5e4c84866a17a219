package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type XAPI struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

type Config struct {
	PostgresURI        string
	RedisURI           string
	ListenAddr         string
	PollInterval       time.Duration
	MaxPublishAttempts int
	RetryBackoff       time.Duration
	PublishConcurrency int
	PublishRatePerMin  int
	X                  XAPI
	R2                 R2
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", ""),
		ListenAddr:         getEnv("LISTEN_ADDR", ":3000"),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 30*time.Second),
		MaxPublishAttempts: getEnvInt("MAX_PUBLISH_ATTEMPTS", 3),
		RetryBackoff:       getEnvDuration("RETRY_BACKOFF", time.Minute),
		PublishConcurrency: getEnvInt("PUBLISH_CONCURRENCY", 10),
		PublishRatePerMin:  getEnvInt("PUBLISH_RATE_PER_MIN", 30),
		X: XAPI{
			ConsumerKey:       getEnv("X_CONSUMER_KEY", ""),
			ConsumerSecret:    getEnv("X_CONSUMER_SECRET", ""),
			AccessToken:       getEnv("X_ACCESS_TOKEN", ""),
			AccessTokenSecret: getEnv("X_ACCESS_TOKEN_SECRET", ""),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
