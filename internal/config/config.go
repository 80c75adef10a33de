package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // "" disables the health endpoint

	// DB
	Env     string // "dev" | "prod"
	Store   string // "sqlite" | "memory"
	DBPath  string // e.g. "./data/turnstile.db"
	SeedDev bool

	// Branch-local day boundaries fall back to this zone.
	Timezone string

	AdminToken         string
	RateLimitPerMinute int // 0 = unlimited

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)

	// Tracing is off unless an OTLP endpoint is configured.
	OTLPEndpoint string
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("TURNSTILE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	storeKind := strings.ToLower(getenvDefault("TURNSTILE_STORE", "sqlite"))
	if storeKind != "sqlite" && storeKind != "memory" {
		storeKind = "sqlite"
	}

	return Config{
		HTTPAddr: getenvDefault("TURNSTILE_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("TURNSTILE_GRPC_ADDR"),

		Env:     env,
		Store:   storeKind,
		DBPath:  getenvDefault("TURNSTILE_DB_PATH", "./data/turnstile.db"),
		SeedDev: getenvBool("TURNSTILE_SEED_DEV", env == "dev"),

		Timezone: getenvDefault("TURNSTILE_TIMEZONE", "UTC"),

		AdminToken:         strings.TrimSpace(os.Getenv("TURNSTILE_ADMIN_TOKEN")),
		RateLimitPerMinute: getenvInt("TURNSTILE_RATE_LIMIT_PER_MINUTE", 60),

		HeartbeatRetentionDays: getenvInt("TURNSTILE_HEARTBEAT_RETENTION_DAYS", 30),
		PruneIntervalHours:     getenvInt("TURNSTILE_PRUNE_INTERVAL_HOURS", 6),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// KioskConfig configures one entrance terminal.
type KioskConfig struct {
	ServerURL      string
	TerminalID     string
	TerminalSecret string

	Debounce          time.Duration
	Feedback          time.Duration
	DuplicateFeedback time.Duration
	AdminSession      time.Duration
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
}

func KioskFromEnv() KioskConfig {
	return KioskConfig{
		ServerURL:      strings.TrimRight(getenvDefault("TURNSTILE_SERVER_URL", "http://localhost:8080"), "/"),
		TerminalID:     os.Getenv("TURNSTILE_TERMINAL_ID"),
		TerminalSecret: os.Getenv("TURNSTILE_TERMINAL_SECRET"),

		Debounce:          time.Duration(getenvInt("TURNSTILE_DEBOUNCE_MS", 2000)) * time.Millisecond,
		Feedback:          time.Duration(getenvInt("TURNSTILE_FEEDBACK_MS", 2500)) * time.Millisecond,
		DuplicateFeedback: time.Duration(getenvInt("TURNSTILE_DUPLICATE_FEEDBACK_MS", 4000)) * time.Millisecond,
		AdminSession:      time.Duration(getenvInt("TURNSTILE_ADMIN_SESSION_S", 300)) * time.Second,
		RequestTimeout:    time.Duration(getenvInt("TURNSTILE_REQUEST_TIMEOUT_MS", 4000)) * time.Millisecond,
		HeartbeatInterval: time.Duration(getenvInt("TURNSTILE_HEARTBEAT_INTERVAL_S", 15)) * time.Second,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
