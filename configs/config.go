package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Dispatch struct {
	PublishPerMinute int
	Burst            int
	QueueCapacity    int
	MaxAttempts      int
	BaseDelaySeconds int
	MaxDelaySeconds  int
	LookAhead        int
}

type Config struct {
	SnapClientID     string
	SnapClientSecret string
	SnapRedirectURI  string
	PostgresURI      string
	RedisURI         string
	FrontendURL      string
	R2               R2
	Dispatch         Dispatch
	SecretKey        string
	CookieName       string
}

func LoadConfig() *Config {
	return &Config{
		SnapClientID:     getEnv("SNAP_CLIENT_ID", ""),
		SnapClientSecret: getEnv("SNAP_CLIENT_SECRET", ""),
		SnapRedirectURI:  getEnv("SNAP_REDIRECT_URI", ""),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", ""),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Dispatch: Dispatch{
			PublishPerMinute: getEnvInt("PUBLISH_PER_MINUTE", 30),
			Burst:            getEnvInt("PUBLISH_BURST", 10),
			QueueCapacity:    getEnvInt("QUEUE_CAPACITY", 100),
			MaxAttempts:      getEnvInt("PUBLISH_MAX_ATTEMPTS", 5),
			BaseDelaySeconds: getEnvInt("PUBLISH_BASE_DELAY_SECONDS", 1),
			MaxDelaySeconds:  getEnvInt("PUBLISH_MAX_DELAY_SECONDS", 60),
			LookAhead:        getEnvInt("RECURRENCE_LOOKAHEAD", 4),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
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
