package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carmatch/internal/core"
)

// Defaults for the intake option sets and chart colors.
var (
	DefaultPalette    = []string{"red", "blue", "green", "yellow", "black", "white", "silver", "orange"}
	DefaultMotorTypes = []string{"electric", "hybrid", "petrol", "diesel"}
	DefaultHobbies    = []string{"reading", "sports", "music", "travel", "cooking", "gaming", "biking", "art"}
	DefaultPieColors  = []string{"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF", "#FF9F40", "#C9CBCF", "#8BC34A"}

	// DefaultLocations uses the LOCATIONS syntax.
	DefaultLocations = "Italy=Rome|Milan|Turin|Naples;Germany=Berlin|Munich|Hamburg;" +
		"France=Paris|Lyon|Marseille;Spain=Madrid|Barcelona|Valencia;" +
		"Portugal=Lisbon|Porto;United Kingdom=London|Manchester|Edinburgh"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend   string
	DataDirectory string
	SeedFile      string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID          string
	GoogleSheetName              string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Questionnaire options and chart styling
	Palette     []string
	MotorTypes  []string
	Hobbies     []string
	PieColors   []string
	HobbyColors map[string]string
	Countries   []core.Country

	// Dashboard cache
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIRECTORY", "./data"),
		SeedFile:      getEnv("SEED_FILE", "submissions.json"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/carmatch.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "carmatch"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_submissions"),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:              getEnv("GOOGLE_SHEET_NAME", "Submissions"),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		Palette:     getEnvList("COLOR_PALETTE", DefaultPalette),
		MotorTypes:  getEnvList("MOTOR_TYPES", DefaultMotorTypes),
		Hobbies:     getEnvList("HOBBIES", DefaultHobbies),
		PieColors:   getEnvList("PIE_COLORS", DefaultPieColors),
		HobbyColors: getEnvMap("HOBBY_COLORS"),
		Countries:   parseLocations(getEnv("LOCATIONS", DefaultLocations)),

		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 16),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 10*time.Minute),
	}

	return cfg
}

// Options returns the intake option sets.
func (c *Config) Options() core.Options {
	return core.Options{
		Palette:    c.Palette,
		MotorTypes: c.MotorTypes,
		Hobbies:    c.Hobbies,
		Countries:  c.Countries,
	}
}

// SeedPath is the JSON file the memory backend starts from.
func (c *Config) SeedPath() string {
	if c.SeedFile == "" || filepath.IsAbs(c.SeedFile) {
		return c.SeedFile
	}
	return filepath.Join(c.DataDirectory, c.SeedFile)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DataBackend == "sheets" {
		errors = append(errors, c.sheetsErrors("sheets backend")...)
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	for _, set := range []struct {
		key    string
		values []string
	}{
		{"COLOR_PALETTE", c.Palette},
		{"MOTOR_TYPES", c.MotorTypes},
		{"HOBBIES", c.Hobbies},
		{"PIE_COLORS", c.PieColors},
	} {
		if len(set.values) == 0 {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", set.key))
		} else if dup := firstDuplicate(set.values); dup != "" {
			errors = append(errors, fmt.Sprintf("%s contains duplicate value '%s'", set.key, dup))
		}
	}

	errors = append(errors, locationErrors(c.Countries)...)

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if !oneOf(strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "warning", "error"}) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if !oneOf(strings.ToLower(c.LogFormat), []string{"text", "json"}) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks the settings the sheet mirror worker needs on top
// of Validate.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.DataBackend != "sqlite" {
		errors = append(errors, fmt.Sprintf("mirror worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the mirror worker")
	}
	errors = append(errors, c.sheetsErrors("mirror worker")...)
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) sheetsErrors(user string) []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, fmt.Sprintf("Google Spreadsheet ID is required when using %s", user))
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, fmt.Sprintf("Google Sheet name is required when using %s", user))
	}
	hasJSON := c.GoogleServiceAccountJSON != ""
	file := c.GoogleServiceAccountFile
	if file == "" {
		file = c.GoogleApplicationCredentials
	}
	switch {
	case !hasJSON && file == "":
		errors = append(errors, fmt.Sprintf("either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for %s", user))
	case !hasJSON:
		if _, err := os.Stat(file); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", file))
		}
	}
	return errors
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// getEnvList reads a comma separated list, keeping order and dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvMap reads "key=value" pairs separated by commas. Malformed pairs are
// ignored.
func getEnvMap(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range getEnvList(key, nil) {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// parseLocations reads "Country=City|City;Country=City". A country without
// "=" is kept with no cities, which accepts any city for it.
func parseLocations(value string) []core.Country {
	var out []core.Country
	for _, entry := range strings.Split(value, ";") {
		name, cities, _ := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		country := core.Country{Name: name, Cities: []string{}}
		for _, city := range strings.Split(cities, "|") {
			if city = strings.TrimSpace(city); city != "" {
				country.Cities = append(country.Cities, city)
			}
		}
		out = append(out, country)
	}
	return out
}

func locationErrors(countries []core.Country) []string {
	var errors []string
	if len(countries) == 0 {
		return []string{"LOCATIONS cannot be empty"}
	}
	names := make([]string, len(countries))
	for i, c := range countries {
		names[i] = c.Name
		if dup := firstDuplicate(c.Cities); dup != "" {
			errors = append(errors, fmt.Sprintf("LOCATIONS lists city '%s' twice for %s", dup, c.Name))
		}
	}
	if dup := firstDuplicate(names); dup != "" {
		errors = append(errors, fmt.Sprintf("LOCATIONS contains duplicate country '%s'", dup))
	}
	return errors
}
