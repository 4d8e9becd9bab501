package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/crucial707/labstock/internal/auth"
	"github.com/crucial707/labstock/internal/db"
	"github.com/crucial707/labstock/internal/models"
)

// Defaults that Validate refuses in prod.
const (
	DefaultSessionSecret = "supersecretkey"
	DefaultAdminPassword = "admin"
	DefaultUserPassword  = "user"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Config struct {
	Port string

	// Env is "dev" (default) or "prod". Prod refuses default secrets and passwords.
	Env string

	// DataDir holds reagents.csv and log.csv for the file driver.
	DataDir string
	// StorageDriver is "file" (default) or "postgres".
	StorageDriver string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	DBMaxOpenConns int
	DBMaxIdleConns int

	SessionSecret      string
	SessionExpireHours int

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	UserUsername      string
	UserPassword      string
	UserPasswordHash  string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	LogLevel string
	// LogFormat is "json" (default) or "console".
	LogFormat string

	// CORSAllowedOrigins is set via CORS_ALLOWED_ORIGINS (comma-separated).
	// When empty, no CORS headers are sent.
	CORSAllowedOrigins []string

	// ExportCron enables scheduled spreadsheet snapshots when set (e.g. "0 20 * * *").
	ExportCron string
	ExportDir  string
	// ExportTimezone is the IANA zone the cron expression is evaluated in.
	ExportTimezone string
}

// LoadDotEnv seeds the environment from a .env file. A missing file is not
// an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	dataDir := getEnv("DATA_DIR", "./data")
	return Config{
		Port: getEnv("PORT", "5000"),
		Env:  getEnv("ENV", "dev"),

		DataDir:       dataDir,
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverFile)),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "labstock"),
		DBUser: getEnv("DB_USER", "labstock"),
		DBPass: getEnv("DB_PASS", "labstock"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		SessionSecret:      getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionExpireHours: getEnvInt("SESSION_EXPIRE_HOURS", 12),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", DefaultAdminPassword),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		UserUsername:      getEnv("USER_USERNAME", "user"),
		UserPassword:      getEnv("USER_PASSWORD", DefaultUserPassword),
		UserPasswordHash:  getEnv("USER_PASSWORD_HASH", ""),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		CORSAllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		ExportCron:     getEnv("EXPORT_CRON", ""),
		ExportDir:      getEnv("EXPORT_DIR", filepath.Join(dataDir, "exports")),
		ExportTimezone: getEnv("EXPORT_TZ", "Local"),
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverFile, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverFile, DriverPostgres, c.StorageDriver))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	if c.AdminUsername == c.UserUsername {
		errs = append(errs, errors.New("ADMIN_USERNAME and USER_USERNAME must differ"))
	}
	if c.ExportTimezone != "" {
		if _, err := time.LoadLocation(c.ExportTimezone); err != nil {
			errs = append(errs, fmt.Errorf("EXPORT_TZ: %w", err))
		}
	}
	if c.IsProd() {
		if c.SessionSecret == DefaultSessionSecret || len(c.SessionSecret) < 32 {
			errs = append(errs, errors.New("SESSION_SECRET must be set to at least 32 characters in prod"))
		}
		if c.AdminPasswordHash == "" && c.AdminPassword == DefaultAdminPassword {
			errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be changed in prod"))
		}
		if c.UserPasswordHash == "" && c.UserPassword == DefaultUserPassword {
			errs = append(errs, errors.New("USER_PASSWORD or USER_PASSWORD_HASH must be changed in prod"))
		}
	}
	return errors.Join(errs...)
}

// IsProd reports whether ENV is "prod".
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }

// TLSEnabled reports whether the server should listen with HTTPS.
func (c Config) TLSEnabled() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// SessionTTL is the lifetime of issued session tokens.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionExpireHours) * time.Hour
}

// Credentials returns the two fixed logins. A configured hash takes
// precedence over a plain password.
func (c Config) Credentials() []auth.Credential {
	admin := auth.Credential{Username: c.AdminUsername, PasswordHash: c.AdminPasswordHash, Role: models.RoleAdmin}
	if admin.PasswordHash == "" {
		admin.Password = c.AdminPassword
	}
	user := auth.Credential{Username: c.UserUsername, PasswordHash: c.UserPasswordHash, Role: models.RoleUser}
	if user.PasswordHash == "" {
		user.Password = c.UserPassword
	}
	return []auth.Credential{admin, user}
}

// DBOptions returns the Postgres connection settings.
func (c Config) DBOptions() db.Options {
	return db.Options{
		Host:         c.DBHost,
		Port:         c.DBPort,
		Name:         c.DBName,
		User:         c.DBUser,
		Password:     c.DBPass,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
	}
}

// ExportLocation resolves ExportTimezone, falling back to time.Local.
func (c Config) ExportLocation() *time.Location {
	if loc, err := time.LoadLocation(c.ExportTimezone); err == nil && c.ExportTimezone != "" {
		return loc
	}
	return time.Local
}

// parseList splits a comma-separated list and trims spaces. Empty entries are omitted.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
