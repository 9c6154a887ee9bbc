// Package config reads the storefront settings from the environment, with an
// optional .env file loaded first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
	StoreRedis    StoreBackend = "redis"
	StoreMongo    StoreBackend = "mongo"
)

type BusBackend string

const (
	BusMemory BusBackend = "memory"
	BusRedis  BusBackend = "redis"
)

type Config struct {
	HTTPPort        string
	APIBaseURL      string
	Namespace       string
	RequestTimeout  time.Duration
	BackendTimeout  time.Duration
	RefreshTimeout  time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogPretty bool

	Store      StoreBackend
	SQLitePath string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	MongoURI   string
	MongoDB    string

	// The memory bus only reaches stores of the same process. Processes
	// sharing a sqlite, postgres, redis or mongo store need the redis bus to
	// see each other's changes.
	Bus           BusBackend
	RedisAddr     string
	RedisPassword string

	// empty disables the checkout poller
	KafkaBrokers []string
}

// Load reads envFile if it exists, then the environment. Variables already set
// in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var errs []error
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		Namespace:       getEnv("STOREFRONT_NAMESPACE", "default"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		BackendTimeout:  getEnvDuration("BACKEND_TIMEOUT", 15*time.Second, &errs),
		RefreshTimeout:  getEnvDuration("REFRESH_TIMEOUT", 10*time.Second, &errs),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false, &errs),

		Store:      StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreSQLite)))),
		SQLitePath: getEnv("DB_PATH", "./storefront.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432, &errs),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "ecommerce"),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getEnv("MONGO_DB_NAME", "storefront"),

		Bus:           BusBackend(strings.ToLower(getEnv("BUS_BACKEND", string(BusMemory)))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite, StorePostgres, StoreRedis, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.Store))
	}
	switch cfg.Bus {
	case BusMemory, BusRedis:
	default:
		errs = append(errs, fmt.Errorf("BUS_BACKEND: unknown backend %q", cfg.Bus))
	}
	if cfg.Namespace == "" || strings.ContainsAny(cfg.Namespace, ": ") {
		errs = append(errs, fmt.Errorf("STOREFRONT_NAMESPACE: %q must be non-empty without colons or spaces", cfg.Namespace))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsolatedBus reports whether the store is shared between processes while
// change notifications stay inside this one.
func (c *Config) IsolatedBus() bool {
	return c.Bus == BusMemory && c.Store != StoreMemory
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
