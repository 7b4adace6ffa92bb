package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Remote booking service
	BaseURL     string
	Username    string
	Password    string
	HTTPTimeout time.Duration

	// Hunt parameters
	City          string
	MotivePattern string
	SlotPolicy    string
	ScanMaxSteps  int

	// Sweep pacing
	CenterInterval time.Duration
	SweepInterval  time.Duration

	// Status/metrics endpoint (empty port disables it)
	StatusPort string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BaseURL:     getEnv("DOCTOLIB_BASE_URL", "https://www.doctolib.fr"),
		Username:    getEnv("DOCTOLIB_USERNAME", ""),
		Password:    getEnv("DOCTOLIB_PASSWORD", ""),
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),

		City:          strings.TrimSpace(getEnv("CITY", "")),
		MotivePattern: getEnv("MOTIVE_PATTERN", `1re.*(Pfizer|Moderna)`),
		SlotPolicy:    strings.ToLower(getEnv("SLOT_POLICY", "last")),
		ScanMaxSteps:  getEnvAsInt("SCAN_MAX_STEPS", 31),

		CenterInterval: getEnvAsDuration("CENTER_INTERVAL", 1*time.Second),
		SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", 5*time.Second),

		StatusPort: getEnv("STATUS_PORT", "9090"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
