// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/keremzytn/NumberFightAI/internal/auth"
	"github.com/sirupsen/logrus"
)

// Persistence backends for finished match summaries.
const (
	BackendNone     = "none"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// Room code reservation backends.
const (
	CodesMemory = "memory"
	CodesRedis  = "redis"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	LogLevel logrus.Level

	RoundDuration  time.Duration
	ReconnectGrace time.Duration
	MatchRetention time.Duration
	RoomTTL        time.Duration

	PersistBackend string
	RoomCodes      string

	Postgres Postgres

	RedisAddr string
	RedisDB   int
	QueueName string

	SQLitePath string
	NATSURL    string

	TokenExpire time.Duration
	// Both paths set loads a persistent signing key pair; otherwise one is generated.
	AuthPrivateKeyPath string
	AuthPublicKeyPath  string

	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Postgres holds the connection settings. DATABASE_URL, when set, wins over
// the individual fields.
type Postgres struct {
	URL      string
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// ConnString returns a postgres:// URL.
func (p Postgres) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Load reads the configuration. Unset variables take their defaults; malformed
// ones are an error.
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		PersistBackend: getEnv("PERSIST_BACKEND", BackendNone),
		RoomCodes:      getEnv("ROOM_CODES", CodesMemory),
		Postgres: Postgres{
			URL:      os.Getenv("DATABASE_URL"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: getEnv("PG_DATABASE", "numberfight"),
		},
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		QueueName:  getEnv("HISTORIAN_QUEUE_NAME", "duel_summaries"),
		SQLitePath: getEnv("SQLITE_PATH", "numberfight.db"),
		NATSURL:    os.Getenv("NATS_URL"),

		AuthPrivateKeyPath: os.Getenv("AUTH_PRIVATE_KEY_PATH"),
		AuthPublicKeyPath:  os.Getenv("AUTH_PUBLIC_KEY_PATH"),
	}

	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ROUND_DURATION", 30 * time.Second, &cfg.RoundDuration},
		{"RECONNECT_GRACE", 60 * time.Second, &cfg.ReconnectGrace},
		{"MATCH_RETENTION", 2 * time.Minute, &cfg.MatchRetention},
		{"ROOM_TTL", 10 * time.Minute, &cfg.RoomTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.HistorianBatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return Config{}, err
	}
	flushMs, err := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	if err != nil {
		return Config{}, err
	}
	cfg.HistorianFlush = time.Duration(flushMs) * time.Millisecond

	if cfg.TokenExpire, err = auth.ParseExpire(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return Config{}, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}

	if (cfg.AuthPrivateKeyPath == "") != (cfg.AuthPublicKeyPath == "") {
		return Config{}, fmt.Errorf("AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH must be set together")
	}

	switch cfg.PersistBackend {
	case BackendNone, BackendPostgres, BackendRedis, BackendSQLite:
	default:
		return Config{}, fmt.Errorf("PERSIST_BACKEND: unknown backend %q", cfg.PersistBackend)
	}
	switch cfg.RoomCodes {
	case CodesMemory, CodesRedis:
	default:
		return Config{}, fmt.Errorf("ROOM_CODES: unknown backend %q", cfg.RoomCodes)
	}
	return cfg, nil
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvDuration(key string, defVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}
