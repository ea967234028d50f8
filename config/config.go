package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	NotificationsStore     = "store"
	NotificationsCassandra = "cassandra"
)

type Config struct {
	ServerPort string

	StoreDriver string
	MongoURI    string
	MongoDBName string
	PostgresDSN string

	NotificationsBackend string
	CassandraHosts       []string
	CassandraKeyspace    string

	JWTSecret  string
	LogFile    string
	LogLevel   string
	CORSOrigin string

	// ReconcileSchedule is a cron spec; empty disables the rollup sweep.
	ReconcileSchedule string

	BreakerTimeout     time.Duration
	BreakerMaxFailures uint32
}

// Load reads .env (if any) and then the process environment.
// The returned bool reports whether a .env file was loaded.
func Load(envFile string) (*Config, bool) {
	loaded := godotenv.Load(envFile) == nil
	return FromEnv(), loaded
}

func FromEnv() *Config {
	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8002"),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDBName:          getEnv("MONGO_DB_NAME", "tasks"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		NotificationsBackend: strings.ToLower(getEnv("NOTIFICATIONS_BACKEND", NotificationsStore)),
		CassandraHosts:       splitHosts(os.Getenv("CASS_DB")),
		CassandraKeyspace:    getEnv("CASS_KEYSPACE", "notifications"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		LogFile:              os.Getenv("LOG_FILE"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CORSOrigin:           getEnv("CORS_ORIGIN", "*"),
		ReconcileSchedule:    getEnv("RECONCILE_SCHEDULE", "@every 15m"),
		BreakerTimeout:       getDuration("NOTIFICATIONS_BREAKER_TIMEOUT", 5*time.Second),
		BreakerMaxFailures:   uint32(getInt("NOTIFICATIONS_BREAKER_MAX_FAILURES", 3)),
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.NotificationsBackend {
	case NotificationsStore:
	case NotificationsCassandra:
		if len(c.CassandraHosts) == 0 {
			errs = append(errs, errors.New("CASS_DB is required for the cassandra notifications backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFICATIONS_BACKEND %q", c.NotificationsBackend))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitHosts(raw string) []string {
	var hosts []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
