package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
)

type Config struct {
	CSRFSecret    string // Required: server secret the per-path anti-forgery tokens derive from
	SessionSecret string // Required: HMAC key for session JWTs and derived signing secrets
	TicketSecret  string // Required: HMAC key for redemption tickets and device hashes

	ChallengeSecret string // Optional: Turnstile secret; empty disables challenge verification

	AdminUsername string // Optional: first-run admin account (default: admin)
	AdminPassword string // Optional: first-run admin password; empty skips bootstrap

	DatabaseFile string // Optional: path to SQLite database file (default: ./earn.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	SecureCookies        bool          // Set Secure on session cookies (default: true outside dev)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	ClaimTTL             time.Duration // How long a prepared ad session stays redeemable (default: 10m)

	Policy domain.Policy // Reward policy knobs
}

func LoadConfig() Config {
	cfg := Config{
		CSRFSecret:      os.Getenv("EARN_CSRF_SECRET"),
		SessionSecret:   os.Getenv("EARN_SESSION_SECRET"),
		TicketSecret:    os.Getenv("EARN_TICKET_SECRET"),
		ChallengeSecret: os.Getenv("EARN_CHALLENGE_SECRET"),

		AdminUsername: getEnvOrDefault("EARN_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("EARN_ADMIN_PASSWORD"),

		DatabaseFile: getEnvOrDefault("EARN_DATABASE_FILE", "earn.db"),
		PepperFile:   getEnvOrDefault("EARN_PEPPER_FILE", "pepper"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		ClaimTTL:             getEnvDurationOrDefault("EARN_CLAIM_TTL", 10*time.Minute),

		Policy: loadPolicy(),
	}

	cfg.SecureCookies = cfg.Env != "dev"
	return cfg
}

// loadPolicy reads the reward policy from the environment. Every knob has a
// production-plausible default so a bare deployment still behaves sanely.
func loadPolicy() domain.Policy {
	placements := strings.Split(getEnvOrDefault("EARN_PLACEMENTS", "sidebar,modal"), ",")
	for i := range placements {
		placements[i] = strings.TrimSpace(placements[i])
	}

	return domain.Policy{
		RewardPerView:    getEnvIntOrDefault("EARN_REWARD_PER_VIEW", 5),
		RequiredDuration: getEnvIntOrDefault("EARN_REQUIRED_DURATION_SEC", 30),
		MinInterval:      getEnvIntOrDefault("EARN_MIN_INTERVAL_SEC", 60),
		PerDay:           getEnvIntOrDefault("EARN_PER_DAY", 20),
		PerDevice:        getEnvIntOrDefault("EARN_PER_DEVICE", 40),
		PriceFloor:       getEnvFloatOrDefault("EARN_PRICE_FLOOR", 0),
		Placements:       placements,
		DefaultProvider:  getEnvOrDefault("EARN_DEFAULT_PROVIDER", "monetag"),
		Providers: map[string]domain.ProviderConfig{
			"monetag": {
				Enabled:   getEnvBoolOrDefault("EARN_MONETAG_ENABLED", true),
				ZoneID:    os.Getenv("EARN_MONETAG_ZONE_ID"),
				ScriptURL: os.Getenv("EARN_MONETAG_SCRIPT_URL"),
			},
			"gma": {
				Enabled:   getEnvBoolOrDefault("EARN_GMA_ENABLED", false),
				AdTagBase: os.Getenv("EARN_GMA_ADTAG_BASE"),
			},
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
