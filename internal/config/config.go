package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Env     string `toml:"env"`
	DataDir string `toml:"data_dir"`

	// StorageBackend selects where credentials and sessions persist:
	// "file" (JSON files under DataDir) or "sqlite".
	StorageBackend string `toml:"storage_backend"`
	AuthFile       string `toml:"auth_file"`
	SessionsFile   string `toml:"sessions_file"`
	DatabasePath   string `toml:"database_path"`

	PasswordMinLength        int  `toml:"password_min_length"`
	PasswordRequireUppercase bool `toml:"password_require_uppercase"`
	PasswordRequireLowercase bool `toml:"password_require_lowercase"`
	PasswordRequireDigit     bool `toml:"password_require_digit"`
	PasswordRequireSymbol    bool `toml:"password_require_symbol"`

	MaxLoginAttempts int           `toml:"max_login_attempts"`
	LockoutDuration  time.Duration `toml:"-"`
	SessionTimeout   time.Duration `toml:"-"`

	TOTPIssuer      string `toml:"totp_issuer"`
	BackupCodeCount int    `toml:"backup_code_count"`

	LogLevel string `toml:"log_level"`
}

// fileConfig mirrors Config for the TOML file, with durations as strings so
// operators can write "15m" rather than nanosecond counts.
type fileConfig struct {
	Config
	LockoutDuration string `toml:"lockout_duration"`
	SessionTimeout  string `toml:"session_timeout"`
}

// Load builds the configuration from defaults, an optional TOML file named
// by TAXDESK_CONFIG_FILE, and TAXDESK_* environment variables, in that
// order of increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("TAXDESK_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.AuthFile == "" {
		cfg.AuthFile = filepath.Join(cfg.DataDir, "auth.json")
	}
	if cfg.SessionsFile == "" {
		cfg.SessionsFile = filepath.Join(cfg.DataDir, "sessions.json")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "taxdesk.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Env:                      "development",
		DataDir:                  filepath.Join(home, ".taxdesk"),
		StorageBackend:           "file",
		PasswordMinLength:        8,
		PasswordRequireUppercase: true,
		PasswordRequireLowercase: true,
		PasswordRequireDigit:     true,
		PasswordRequireSymbol:    true,
		MaxLoginAttempts:         5,
		LockoutDuration:          15 * time.Minute,
		SessionTimeout:           24 * time.Hour,
		TOTPIssuer:               "TaxDesk",
		BackupCodeCount:          10,
		LogLevel:                 "info",
	}
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	fc.Config = *cfg
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*cfg = fc.Config
	if fc.LockoutDuration != "" {
		d, err := time.ParseDuration(fc.LockoutDuration)
		if err != nil {
			return fmt.Errorf("parse lockout_duration: %w", err)
		}
		cfg.LockoutDuration = d
	}
	if fc.SessionTimeout != "" {
		d, err := time.ParseDuration(fc.SessionTimeout)
		if err != nil {
			return fmt.Errorf("parse session_timeout: %w", err)
		}
		cfg.SessionTimeout = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Env = getEnv("TAXDESK_ENV", cfg.Env)
	cfg.DataDir = getEnv("TAXDESK_DATA_DIR", cfg.DataDir)
	cfg.StorageBackend = strings.ToLower(getEnv("TAXDESK_STORAGE_BACKEND", cfg.StorageBackend))
	cfg.AuthFile = getEnv("TAXDESK_AUTH_FILE", cfg.AuthFile)
	cfg.SessionsFile = getEnv("TAXDESK_SESSIONS_FILE", cfg.SessionsFile)
	cfg.DatabasePath = getEnv("TAXDESK_DATABASE_PATH", cfg.DatabasePath)

	cfg.PasswordMinLength = getEnvInt("TAXDESK_PASSWORD_MIN_LENGTH", cfg.PasswordMinLength)
	cfg.PasswordRequireUppercase = getEnvBool("TAXDESK_PASSWORD_REQUIRE_UPPERCASE", cfg.PasswordRequireUppercase)
	cfg.PasswordRequireLowercase = getEnvBool("TAXDESK_PASSWORD_REQUIRE_LOWERCASE", cfg.PasswordRequireLowercase)
	cfg.PasswordRequireDigit = getEnvBool("TAXDESK_PASSWORD_REQUIRE_DIGIT", cfg.PasswordRequireDigit)
	cfg.PasswordRequireSymbol = getEnvBool("TAXDESK_PASSWORD_REQUIRE_SYMBOL", cfg.PasswordRequireSymbol)

	cfg.MaxLoginAttempts = getEnvInt("TAXDESK_MAX_LOGIN_ATTEMPTS", cfg.MaxLoginAttempts)

	var err error
	if cfg.LockoutDuration, err = getEnvDuration("TAXDESK_LOCKOUT_DURATION", cfg.LockoutDuration); err != nil {
		return err
	}
	if cfg.SessionTimeout, err = getEnvDuration("TAXDESK_SESSION_TIMEOUT", cfg.SessionTimeout); err != nil {
		return err
	}

	cfg.TOTPIssuer = getEnv("TAXDESK_TOTP_ISSUER", cfg.TOTPIssuer)
	cfg.BackupCodeCount = getEnvInt("TAXDESK_BACKUP_CODE_COUNT", cfg.BackupCodeCount)
	cfg.LogLevel = strings.ToLower(getEnv("TAXDESK_LOG_LEVEL", cfg.LogLevel))
	return nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.StorageBackend != "file" && c.StorageBackend != "sqlite" {
		errs = append(errs, "storage_backend must be file or sqlite")
	}
	if c.StorageBackend == "sqlite" && c.DatabasePath == "" {
		errs = append(errs, "database_path is required when storage_backend=sqlite")
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, "password_min_length must be >= 1")
	}
	if c.MaxLoginAttempts < 1 {
		errs = append(errs, "max_login_attempts must be >= 1")
	}
	if c.LockoutDuration <= 0 {
		errs = append(errs, "lockout_duration must be > 0")
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, "session_timeout must be > 0")
	}
	if c.BackupCodeCount < 0 {
		errs = append(errs, "backup_code_count must be >= 0")
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, "log_level must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
