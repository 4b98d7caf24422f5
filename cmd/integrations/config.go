package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	integrations "github.com/goliatone/go-integrations"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
)

type appConfig struct {
	Addr            string
	Debug           bool
	Backend         string
	DatabaseDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string
	CacheTTL        time.Duration
	SweepInterval   time.Duration
	AllowedOrigins  []string
	DefaultUserID   string
	ShutdownTimeout time.Duration
	EncryptionKey   string
	Providers       integrations.ProvidersConfig
	// Service holds raw service settings fed to the cfgx provider.
	Service map[string]any
}

func loadConfig() appConfig {
	backend := strings.ToLower(getEnv("INTEGRATIONS_STORE", backendMemory))
	dsn := getEnv("INTEGRATIONS_DATABASE_DSN", "")
	if dsn == "" && backend == backendSQLite {
		dsn = "file:integrations.db?cache=shared&_foreign_keys=on"
	}

	return appConfig{
		Addr:            getEnv("INTEGRATIONS_ADDR", ":8000"),
		Debug:           getEnvBool("INTEGRATIONS_DEBUG", false),
		Backend:         backend,
		DatabaseDSN:     dsn,
		RedisAddr:       getEnv("INTEGRATIONS_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("INTEGRATIONS_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("INTEGRATIONS_REDIS_DB", 0),
		RedisKeyPrefix:  getEnv("INTEGRATIONS_REDIS_PREFIX", ""),
		CacheTTL:        getEnvDuration("INTEGRATIONS_CACHE_TTL", 0),
		SweepInterval:   getEnvDuration("INTEGRATIONS_SWEEP_INTERVAL", 5*time.Minute),
		AllowedOrigins:  getEnvSlice("INTEGRATIONS_CORS_ORIGINS"),
		DefaultUserID:   getEnv("INTEGRATIONS_DEFAULT_USER", "demo_user"),
		ShutdownTimeout: getEnvDuration("INTEGRATIONS_SHUTDOWN_TIMEOUT", 10*time.Second),
		EncryptionKey:   getEnv("INTEGRATIONS_ENCRYPTION_KEY", ""),
		Providers: integrations.ProvidersConfig{
			HubSpot:  clientFromEnv("HUBSPOT"),
			Notion:   clientFromEnv("NOTION"),
			Airtable: clientFromEnv("AIRTABLE"),
		},
		Service: serviceSettings(),
	}
}

func clientFromEnv(prefix string) integrations.ClientCredentials {
	return integrations.ClientCredentials{
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		RedirectURI:  getEnv(prefix+"_REDIRECT_URI", "http://localhost:3000"),
	}
}

// serviceSettings maps INTEGRATIONS_* overrides onto core.Config keys. Unset
// variables are left out so defaults apply.
func serviceSettings() map[string]any {
	out := map[string]any{}
	setString(out, "service_name", "INTEGRATIONS_SERVICE_NAME")
	setDuration(out, "state_ttl", "INTEGRATIONS_STATE_TTL")
	setDuration(out, "default_credential_ttl", "INTEGRATIONS_CREDENTIAL_TTL")
	setDuration(out, "upstream_timeout", "INTEGRATIONS_UPSTREAM_TIMEOUT")

	refresh := map[string]any{}
	setString(refresh, "policy", "INTEGRATIONS_REFRESH_POLICY")
	setDuration(refresh, "lead_window", "INTEGRATIONS_REFRESH_LEAD_WINDOW")
	setDuration(refresh, "lock_ttl", "INTEGRATIONS_REFRESH_LOCK_TTL")
	setDuration(refresh, "lock_wait", "INTEGRATIONS_REFRESH_LOCK_WAIT")
	if len(refresh) > 0 {
		out["refresh"] = refresh
	}
	return out
}

func setString(out map[string]any, key, env string) {
	if value := strings.TrimSpace(os.Getenv(env)); value != "" {
		out[key] = value
	}
}

func setDuration(out map[string]any, key, env string) {
	if value := strings.TrimSpace(os.Getenv(env)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			out[key] = d
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvSlice(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
