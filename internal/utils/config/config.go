package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort         string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBSSLMode       string
	GracefulTimeout time.Duration

	// Authorisation timing. The synchronous timeout bounds how long the
	// client-facing call waits; the asynchronous timeout bounds the
	// background worker itself.
	AuthSyncTimeout  time.Duration
	AuthAsyncTimeout time.Duration
	AuthWorkerPool   int

	// Capture queue.
	CaptureWorkers      int
	CapturePollInterval time.Duration
	CaptureLease        time.Duration
	CaptureRetryBackoff time.Duration
	CaptureMaxRetries   int

	// Sweepers.
	ExpiryThreshold   time.Duration
	SweepInterval     time.Duration
	DelayedCaptureAge time.Duration

	GatewayTimeout time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:         getEnv("APP_PORT", "8080"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "connector"),
		DBPassword:      getEnv("DB_PASSWORD", "connector123"),
		DBName:          getEnv("DB_NAME", "connector_db"),
		DBSSLMode:       getEnv("DB_SSLMODE", "disable"),
		GracefulTimeout: parseDuration(getEnv("GRACEFUL_TIMEOUT", "5s"), 5*time.Second),

		AuthSyncTimeout:  parseDuration(getEnv("AUTH_SYNC_TIMEOUT", "10s"), 10*time.Second),
		AuthAsyncTimeout: parseDuration(getEnv("AUTH_ASYNC_TIMEOUT", "50s"), 50*time.Second),
		AuthWorkerPool:   parseInt(getEnv("AUTH_WORKER_POOL", "20"), 20),

		CaptureWorkers:      parseInt(getEnv("CAPTURE_WORKERS", "4"), 4),
		CapturePollInterval: parseDuration(getEnv("CAPTURE_POLL_INTERVAL", "500ms"), 500*time.Millisecond),
		CaptureLease:        parseDuration(getEnv("CAPTURE_LEASE", "60s"), time.Minute),
		CaptureRetryBackoff: parseDuration(getEnv("CAPTURE_RETRY_BACKOFF", "30s"), 30*time.Second),
		CaptureMaxRetries:   parseInt(getEnv("CAPTURE_MAX_RETRIES", "48"), 48),

		ExpiryThreshold:   parseDuration(getEnv("EXPIRY_THRESHOLD", "90h"), 90*time.Hour),
		SweepInterval:     parseDuration(getEnv("SWEEP_INTERVAL", "1h"), time.Hour),
		DelayedCaptureAge: parseDuration(getEnv("DELAYED_CAPTURE_AGE", "2m"), 2*time.Minute),

		GatewayTimeout: parseDuration(getEnv("GATEWAY_TIMEOUT", "30s"), 30*time.Second),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
