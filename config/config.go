package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"movieweb/utils"
)

// Config holds all configuration settings for the application.
type Config struct {
	// Server settings
	ListenAddress string
	ListenPort    string
	Debug         bool

	// Storage settings
	DataFilePath  string
	StoreBackend  string // "json" or "sqlite"
	EnableBackup  bool
	MovieIDScheme string // "uuid" or "sequential"

	// Presentation
	PageSize int

	// Movie metadata lookups
	OMDbAPIKey  string
	OMDbBaseURL string
	OMDbTimeout time.Duration
	OMDbRetries int
	OMDbRPS     float64

	// Flash message signing
	SessionSecret     string
	SessionSecretFile string
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	SchemeUUID       = "uuid"
	SchemeSequential = "sequential"
)

const (
	defaultAddress           = "0.0.0.0"
	defaultPort              = "5000"
	defaultDataFile          = "./movies.json" // Relative to working dir
	defaultBackend           = BackendJSON
	defaultEnableBackup      = true
	defaultMovieIDScheme     = SchemeUUID
	defaultPageSize          = 4
	defaultOMDbBaseURL       = "https://www.omdbapi.com/"
	defaultOMDbTimeout       = 5 * time.Second
	defaultOMDbRetries       = 0
	defaultOMDbRPS           = 0.0
	defaultSessionSecretFile = ""
	defaultSessionKeyFile    = "./movieweb.key" // Used when we generate a key
)

// LoadConfig loads configuration from defaults, environment variables, and command-line flags.
// Command-line flags take precedence over environment variables, which take precedence over defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(flag.CommandLine, os.Args[1:])
}

func loadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	log := zap.L()
	cfg := &Config{}

	// Environment variables use the MOVIEWEB_ prefix and feed the flag defaults.
	fs.StringVar(&cfg.ListenAddress, "address", getEnv("MOVIEWEB_LISTEN_ADDRESS", defaultAddress), "Server listen address (Env: MOVIEWEB_LISTEN_ADDRESS)")
	fs.StringVar(&cfg.ListenPort, "port", getEnv("MOVIEWEB_LISTEN_PORT", defaultPort), "Server listen port (Env: MOVIEWEB_LISTEN_PORT)")
	fs.BoolVar(&cfg.Debug, "debug", getEnvBool("MOVIEWEB_DEBUG", false), "Enable development logging and gin debug mode (Env: MOVIEWEB_DEBUG)")
	fs.StringVar(&cfg.DataFilePath, "data-file", getEnv("MOVIEWEB_DATA_FILE", defaultDataFile), "Path to the JSON (or SQLite) data file (Env: MOVIEWEB_DATA_FILE)")
	fs.StringVar(&cfg.StoreBackend, "store", getEnv("MOVIEWEB_STORE", defaultBackend), "Storage backend: json or sqlite (Env: MOVIEWEB_STORE)")
	fs.BoolVar(&cfg.EnableBackup, "enable-backup", getEnvBool("MOVIEWEB_ENABLE_BACKUP", defaultEnableBackup), "Keep a .bak copy of the data file on every save (Env: MOVIEWEB_ENABLE_BACKUP)")
	fs.StringVar(&cfg.MovieIDScheme, "movie-id-scheme", getEnv("MOVIEWEB_MOVIE_ID_SCHEME", defaultMovieIDScheme), "Movie ID scheme: uuid or sequential (Env: MOVIEWEB_MOVIE_ID_SCHEME)")
	fs.IntVar(&cfg.PageSize, "page-size", getEnvInt("MOVIEWEB_PAGE_SIZE", defaultPageSize), "Movies per page on /movies (Env: MOVIEWEB_PAGE_SIZE)")
	fs.StringVar(&cfg.OMDbAPIKey, "omdb-api-key", getEnv("MOVIEWEB_OMDB_API_KEY", ""), "OMDb API key; empty disables lookups (Env: MOVIEWEB_OMDB_API_KEY)")
	fs.StringVar(&cfg.OMDbBaseURL, "omdb-url", getEnv("MOVIEWEB_OMDB_URL", defaultOMDbBaseURL), "OMDb base URL (Env: MOVIEWEB_OMDB_URL)")
	fs.DurationVar(&cfg.OMDbTimeout, "omdb-timeout", getEnvDuration("MOVIEWEB_OMDB_TIMEOUT", defaultOMDbTimeout), "Timeout for one OMDb lookup (Env: MOVIEWEB_OMDB_TIMEOUT)")
	fs.IntVar(&cfg.OMDbRetries, "omdb-retries", getEnvInt("MOVIEWEB_OMDB_RETRIES", defaultOMDbRetries), "Retries after a failed OMDb request (Env: MOVIEWEB_OMDB_RETRIES)")
	fs.Float64Var(&cfg.OMDbRPS, "omdb-rps", getEnvFloat("MOVIEWEB_OMDB_RPS", defaultOMDbRPS), "Max OMDb requests per second, 0 for unlimited (Env: MOVIEWEB_OMDB_RPS)")
	fs.StringVar(&cfg.SessionSecretFile, "session-secret-file", getEnv("MOVIEWEB_SESSION_SECRET_FILE", defaultSessionSecretFile), "Path to file containing the session secret (Env: MOVIEWEB_SESSION_SECRET_FILE)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if !utils.In(cfg.StoreBackend, BackendJSON, BackendSQLite) {
		return nil, fmt.Errorf("invalid store backend '%s' (supported: json, sqlite)", cfg.StoreBackend)
	}
	cfg.MovieIDScheme = strings.ToLower(strings.TrimSpace(cfg.MovieIDScheme))
	if !utils.In(cfg.MovieIDScheme, SchemeUUID, SchemeSequential) {
		return nil, fmt.Errorf("invalid movie id scheme '%s' (supported: uuid, sequential)", cfg.MovieIDScheme)
	}
	if cfg.PageSize <= 0 {
		log.Warn("Invalid page size, using default", zap.Int("page_size", cfg.PageSize), zap.Int("default", defaultPageSize))
		cfg.PageSize = defaultPageSize
	}
	if cfg.OMDbTimeout <= 0 {
		log.Warn("Invalid OMDb timeout, using default", zap.Duration("timeout", cfg.OMDbTimeout), zap.Duration("default", defaultOMDbTimeout))
		cfg.OMDbTimeout = defaultOMDbTimeout
	}
	if cfg.OMDbRetries < 0 {
		cfg.OMDbRetries = 0
	}
	if cfg.OMDbRPS < 0 {
		cfg.OMDbRPS = 0
	}

	// --- Session Secret Handling ---
	// Priority: File (CLI/Env) > Env Var > Default Key File > Generate
	secretSource, err := loadSessionSecret(cfg)
	if err != nil {
		return nil, err
	}

	// --- Data Path Validation ---
	absPath, err := filepath.Abs(cfg.DataFilePath)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for data-file '%s': %w", cfg.DataFilePath, err)
	}
	cfg.DataFilePath = absPath

	fileInfo, err := os.Stat(cfg.DataFilePath)
	if err == nil && fileInfo.IsDir() {
		return nil, fmt.Errorf("data path '%s' points to a directory, not a file", cfg.DataFilePath)
	}
	// A missing file is fine: the store creates it on first save.

	logConfiguration(log, cfg, secretSource)

	return cfg, nil
}

// loadSessionSecret fills cfg.SessionSecret and returns a description of where it came from.
func loadSessionSecret(cfg *Config) (string, error) {
	log := zap.L()

	// 1. Explicit file path (from flag or env)
	if cfg.SessionSecretFile != "" {
		secretBytes, err := os.ReadFile(cfg.SessionSecretFile)
		if err == nil {
			cfg.SessionSecret = strings.TrimSpace(string(secretBytes))
			if cfg.SessionSecret != "" {
				return fmt.Sprintf("File (%s)", cfg.SessionSecretFile), nil
			}
			log.Warn("Session secret file is empty, ignoring", zap.String("file", cfg.SessionSecretFile))
		} else {
			log.Warn("Failed to read session secret file, checking other sources", zap.String("file", cfg.SessionSecretFile), zap.Error(err))
		}
	}

	// 2. Environment variable
	if secret := strings.TrimSpace(getEnv("MOVIEWEB_SESSION_SECRET", "")); secret != "" {
		cfg.SessionSecret = secret
		return "Environment Variable (MOVIEWEB_SESSION_SECRET)", nil
	}

	// 3. Default key file
	secretBytes, err := os.ReadFile(defaultSessionKeyFile)
	if err == nil {
		cfg.SessionSecret = strings.TrimSpace(string(secretBytes))
		if cfg.SessionSecret != "" {
			return fmt.Sprintf("Default Key File (%s)", defaultSessionKeyFile), nil
		}
		log.Warn("Default session key file is empty, generating a new secret", zap.String("file", defaultSessionKeyFile))
	} else if !os.IsNotExist(err) {
		log.Warn("Failed to read default session key file, generating a new secret", zap.String("file", defaultSessionKeyFile), zap.Error(err))
	}

	// 4. Generate and try to persist
	newSecret, err := generateRandomKey(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	cfg.SessionSecret = newSecret

	if err := os.WriteFile(defaultSessionKeyFile, []byte(newSecret), 0600); err != nil {
		log.Warn("Failed to save generated session secret, using it for this run only", zap.String("file", defaultSessionKeyFile), zap.Error(err))
		return "Generated (In Memory)", nil
	}
	return fmt.Sprintf("Generated & Saved (%s)", defaultSessionKeyFile), nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvBool recognizes "true", "1", "yes" and "false", "0", "no" (case-insensitive).
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		zap.L().Warn("Invalid boolean environment variable, using default", zap.String("key", key), zap.String("value", value), zap.Bool("default", fallback))
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return n
		}
		zap.L().Warn("Invalid integer environment variable, using default", zap.String("key", key), zap.String("value", value), zap.Int("default", fallback))
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			return f
		}
		zap.L().Warn("Invalid number environment variable, using default", zap.String("key", key), zap.String("value", value), zap.Float64("default", fallback))
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return d
		}
		zap.L().Warn("Invalid duration environment variable, using default", zap.String("key", key), zap.String("value", value), zap.Duration("default", fallback))
	}
	return fallback
}

// logConfiguration prints the loaded configuration settings. The OMDb key itself is never logged.
func logConfiguration(log *zap.Logger, cfg *Config, secretSource string) {
	log.Info("Configuration loaded",
		zap.String("address", cfg.ListenAddress),
		zap.String("port", cfg.ListenPort),
		zap.String("data_file", cfg.DataFilePath),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("backup", cfg.EnableBackup),
		zap.String("movie_id_scheme", cfg.MovieIDScheme),
		zap.Int("page_size", cfg.PageSize),
		zap.Bool("omdb_enabled", cfg.OMDbAPIKey != ""),
		zap.String("omdb_url", cfg.OMDbBaseURL),
		zap.Duration("omdb_timeout", cfg.OMDbTimeout),
		zap.Int("omdb_retries", cfg.OMDbRetries),
		zap.Float64("omdb_rps", cfg.OMDbRPS),
		zap.String("session_secret_source", secretSource),
	)
}

// generateRandomKey returns length cryptographically secure random bytes, hex-encoded.
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
