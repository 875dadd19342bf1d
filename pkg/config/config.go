package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SCANFORM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvDBDSN  = "SCANFORM_DB_DSN"
	EnvDBHost = "SCANFORM_DB_HOST"
	EnvDBUser = "SCANFORM_DB_USER"
	EnvDBName = "SCANFORM_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Connect      ConnectConfig
	ScanForm     ScanFormConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.ScanForm.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCANFORM_APP_ENV" required:"true"`
	Port         string `envconfig:"SCANFORM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SCANFORM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCANFORM_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SCANFORM_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SCANFORM_DB_DSN"`
	Driver string `envconfig:"SCANFORM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCANFORM_DB_HOST"`
	LegacyPort     int    `envconfig:"SCANFORM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCANFORM_DB_USER"`
	LegacyPassword string `envconfig:"SCANFORM_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCANFORM_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCANFORM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCANFORM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCANFORM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCANFORM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCANFORM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Queries slower than this are logged as warnings; zero disables query logging.
	SlowQueryThreshold time.Duration `envconfig:"SCANFORM_DB_SLOW_QUERY_THRESHOLD" default:"0"`
}

// IsSQLite reports whether the metadata tables live in a sqlite file.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

// RedisConfig is optional; when neither URL nor Address is set the service
// falls back to in-process locks and skips idempotency replay.
type RedisConfig struct {
	URL          string        `envconfig:"SCANFORM_REDIS_URL"`
	Address      string        `envconfig:"SCANFORM_REDIS_ADDR"`
	Password     string        `envconfig:"SCANFORM_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCANFORM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCANFORM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCANFORM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCANFORM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCANFORM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCANFORM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	ScanFormEnabled bool `envconfig:"SCANFORM_FEATURE_ENABLED" default:"false"`
	AutoMigrate     bool `envconfig:"SCANFORM_AUTO_MIGRATE" default:"false"`
}

// ConnectConfig points at the remote label/manifest API.
type ConnectConfig struct {
	BaseURL string        `envconfig:"SCANFORM_CONNECT_BASE_URL"`
	APIKey  string        `envconfig:"SCANFORM_CONNECT_API_KEY"`
	Timeout time.Duration `envconfig:"SCANFORM_CONNECT_TIMEOUT" default:"30s"`
}

func (c ConnectConfig) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.APIKey) != ""
}

type ScanFormConfig struct {
	Carrier           string        `envconfig:"SCANFORM_CARRIER" default:"usps"`
	MinShipDate       string        `envconfig:"SCANFORM_MIN_SHIP_DATE"`
	MinShipDateOffset int           `envconfig:"SCANFORM_MIN_SHIP_DATE_OFFSET_DAYS" default:"0"`
	LockTTL           time.Duration `envconfig:"SCANFORM_LOCK_TTL" default:"30s"`
	HistoryPerPage    int           `envconfig:"SCANFORM_HISTORY_PER_PAGE" default:"20"`
	HistoryMaxPerPage int           `envconfig:"SCANFORM_HISTORY_MAX_PER_PAGE" default:"100"`
}

var minShipDateLayouts = []string{time.RFC3339, "2006-01-02"}

// FixedMinShipDate parses SCANFORM_MIN_SHIP_DATE. The zero time means the
// threshold is computed from the clock on every request.
func (s ScanFormConfig) FixedMinShipDate() (time.Time, error) {
	raw := strings.TrimSpace(s.MinShipDate)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range minShipDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid SCANFORM_MIN_SHIP_DATE %q (expected RFC3339 or YYYY-MM-DD)", raw)
}

func (s ScanFormConfig) validate() error {
	if _, err := s.FixedMinShipDate(); err != nil {
		return err
	}
	if s.MinShipDateOffset < 0 {
		return fmt.Errorf("SCANFORM_MIN_SHIP_DATE_OFFSET_DAYS must not be negative")
	}
	if s.HistoryPerPage < 1 || s.HistoryMaxPerPage < s.HistoryPerPage {
		return fmt.Errorf("history page size %d must be between 1 and %d", s.HistoryPerPage, s.HistoryMaxPerPage)
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SCANFORM_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
