package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/bundy.db"

	// Policy source
	PolicyURL          string
	PolicyTTL          time.Duration
	PolicyFetchTimeout time.Duration

	// Template index refresh
	TemplateRefreshMinutes int // 0 = reload only on demand
}

// FromEnv reads configuration from the environment, loading a .env file
// first when one is present.  Unset or malformed values fall back to
// defaults rather than failing startup.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := getenvDefault("BUNDY_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("BUNDY_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("BUNDY_DB_PATH", "./data/bundy.db")

	policyURL := getenvDefault("BUNDY_POLICY_URL", "http://localhost:8000/api/sessions")
	policyTTL := time.Duration(getenvInt("BUNDY_POLICY_TTL_MINUTES", 5)) * time.Minute
	fetchTimeout := time.Duration(getenvInt("BUNDY_POLICY_FETCH_TIMEOUT_SECONDS", 10)) * time.Second

	refreshMinutes := getenvInt("BUNDY_TEMPLATE_REFRESH_MINUTES", 15)

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		PolicyURL:          policyURL,
		PolicyTTL:          policyTTL,
		PolicyFetchTimeout: fetchTimeout,

		TemplateRefreshMinutes: refreshMinutes,
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
