package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the envconfig prefix shared by every service binary.
	EnvPrefix = "lms"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LMS_DB_DSN"
	EnvDBHost = "LMS_DB_HOST"
	EnvDBUser = "LMS_DB_USER"
	EnvDBName = "LMS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Lending      LendingConfig
	Scheduler    SchedulerConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LMS_APP_ENV" required:"true"`
	Port         string `envconfig:"LMS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LMS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LMS_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LMS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LMS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LMS_DB_DSN"`
	Driver string `envconfig:"LMS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LMS_DB_HOST"`
	LegacyPort     int    `envconfig:"LMS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LMS_DB_USER"`
	LegacyPassword string `envconfig:"LMS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LMS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LMS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LMS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LMS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LMS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LMS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LMS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LMS_REDIS_ADDR"`
	Password     string        `envconfig:"LMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LMS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LMS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LMS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LMS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LMS_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LMS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LMS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LMS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LMS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LMS_ARGON_KEY_LEN" default:"32"`
}

// LendingConfig holds the borrowing policy knobs. Defaults mirror the
// library's standing policy: a flat 20 borrowing fee, a 7 day loan period
// and a 10 per day overdue fine.
type LendingConfig struct {
	BorrowFee      int `envconfig:"LMS_LENDING_BORROW_FEE" default:"20"`
	LoanPeriodDays int `envconfig:"LMS_LENDING_LOAN_PERIOD_DAYS" default:"7"`
	FinePerDay     int `envconfig:"LMS_LENDING_FINE_PER_DAY" default:"10"`
}

type SchedulerConfig struct {
	Interval      time.Duration `envconfig:"LMS_SCHEDULER_INTERVAL" default:"24h"`
	AlignMidnight bool          `envconfig:"LMS_SCHEDULER_ALIGN_MIDNIGHT" default:"true"`
	LockTTL       time.Duration `envconfig:"LMS_SCHEDULER_LOCK_TTL" default:"25h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LMS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
