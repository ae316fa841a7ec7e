package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a default; DATABASE_URL is only needed when a postgres
// store or scheduler backend is selected.
type Config struct {
	// Server
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	// Storage
	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"editorial-notify.db"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	SeedFile    string `envconfig:"SEED_FILE"`

	// Mail transport. An empty MAILER_URL logs messages instead of sending them.
	MailerURL     string        `envconfig:"MAILER_URL"`
	MailerTimeout time.Duration `envconfig:"MAILER_TIMEOUT" default:"10s"`
	MailFrom      string        `envconfig:"MAIL_FROM" default:"notifications@localhost"`

	// Rate limiting: maximum sends per second per channel, 0 = unlimited
	RateLimit int `envconfig:"RATE_LIMIT_PER_CHANNEL" default:"100"`

	// Delivery
	DefaultChannel  string        `envconfig:"DEFAULT_CHANNEL" default:"email"`
	AsyncDelivery   bool          `envconfig:"ASYNC_DELIVERY" default:"false"`
	ScheduleDelay   time.Duration `envconfig:"SCHEDULE_DELAY" default:"10m"`
	ScheduleRound   time.Duration `envconfig:"SCHEDULE_ROUND" default:"1m"`
	ScheduledPolicy string        `envconfig:"SCHEDULED_POLICY" default:"latest"`

	// Scheduler backend and the workers that fire due jobs
	SchedulerBackend   string        `envconfig:"SCHEDULER_BACKEND" default:"memory"`
	RedisAddr          string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	RedisDB            int           `envconfig:"REDIS_DB" default:"0"`
	SchedulerInterval  time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"5s"`
	SchedulerWorkers   int           `envconfig:"SCHEDULER_WORKERS" default:"4"`
	SchedulerQueueSize int           `envconfig:"SCHEDULER_QUEUE_SIZE" default:"1000"`

	// Site values available to message templates
	SiteName   string `envconfig:"SITE_NAME" default:"Editorial"`
	SiteURL    string `envconfig:"SITE_URL" default:"http://localhost"`
	AdminEmail string `envconfig:"ADMIN_EMAIL"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return errors.Newf("STORE_DRIVER %q must be one of memory, sqlite, postgres", c.StoreDriver)
	}
	switch c.SchedulerBackend {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		return errors.Newf("SCHEDULER_BACKEND %q must be one of memory, postgres, redis", c.SchedulerBackend)
	}
	if c.NeedsPostgres() && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the postgres driver")
	}
	if c.StoreDriver == DriverSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite driver")
	}
	switch c.ScheduledPolicy {
	case "latest", "abort_if_changed":
	default:
		return errors.Newf("SCHEDULED_POLICY %q must be latest or abort_if_changed", c.ScheduledPolicy)
	}
	if c.ScheduleDelay < 0 || c.ScheduleRound < 0 {
		return errors.New("SCHEDULE_DELAY and SCHEDULE_ROUND must not be negative")
	}
	if c.SchedulerInterval <= 0 {
		return errors.New("SCHEDULER_INTERVAL must be positive")
	}
	if c.SchedulerWorkers <= 0 {
		return errors.New("SCHEDULER_WORKERS must be positive")
	}
	if c.DefaultChannel == "" {
		return errors.New("DEFAULT_CHANNEL must not be empty")
	}
	return nil
}

// NeedsPostgres reports whether any component is backed by postgres.
func (c *Config) NeedsPostgres() bool {
	return c.StoreDriver == DriverPostgres || c.SchedulerBackend == DriverPostgres
}
