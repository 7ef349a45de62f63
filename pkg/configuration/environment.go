package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, falling back to
// the nearest directory containing go.mod when none exist there.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existing(envFiles, "")
	if len(existingFiles) == 0 {
		if root, ok := findModuleRoot(); ok {
			existingFiles = existing(envFiles, root)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existing(envFiles []string, dir string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"recruit_sla"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"recruit-sla"`
}

// MetricsOptions controls the scrape endpoint for milestone and outbox
// metrics. IncludeRuntime adds the Go runtime and process collectors.
type MetricsOptions struct {
	Enabled        bool   `env:"MILESTONES_METRICS_ENABLED" envDefault:"false"`
	Path           string `env:"MILESTONES_METRICS_PATH" envDefault:"/metrics"`
	IncludeRuntime bool   `env:"MILESTONES_METRICS_INCLUDE_RUNTIME" envDefault:"true"`
}

type OutboxOptions struct {
	RelayEnabled         bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
	RelayTables          string        `env:"OUTBOX_RELAY_TABLES" envDefault:"public.milestone_outbox"`
	RelayPollInterval    time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize       int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	RelayLockTTL         time.Duration `env:"OUTBOX_RELAY_LOCK_TTL" envDefault:"60s"`
	RelayMaxAttempts     int           `env:"OUTBOX_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	RelaySingleActive    bool          `env:"OUTBOX_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	RelayDispatchTimeout time.Duration `env:"OUTBOX_RELAY_DISPATCH_TIMEOUT" envDefault:"30s"`

	LastErrorMaxBytes int `env:"OUTBOX_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	CleanerEnabled       bool          `env:"OUTBOX_CLEANER_ENABLED" envDefault:"true"`
	CleanerInterval      time.Duration `env:"OUTBOX_CLEANER_INTERVAL" envDefault:"1m"`
	CleanerRetention     time.Duration `env:"OUTBOX_CLEANER_RETENTION" envDefault:"168h"`
	CleanerDeadRetention time.Duration `env:"OUTBOX_CLEANER_DEAD_RETENTION" envDefault:"720h"`
}

// MaxStatusCacheTTL is the longest accepted MILESTONES_STATUS_CACHE_TTL.
const MaxStatusCacheTTL = 10 * time.Second

type MilestoneOptions struct {
	HolidaysFile        string        `env:"HOLIDAYS_FILE" envDefault:""`
	CatalogFile         string        `env:"TEMPLATE_CATALOG_FILE" envDefault:""`
	FrozenStatuses      string        `env:"MILESTONES_FROZEN_STATUSES" envDefault:"paused,cancelled"`
	StrictInstantiation bool          `env:"MILESTONES_STRICT_INSTANTIATION" envDefault:"false"`
	// StatusCacheTTL bounds how long a newly paused or cancelled request can
	// still show on dashboards: status events are appended by the recruitment
	// system and never invalidate the cache. Capped at MaxStatusCacheTTL.
	StatusCacheTTL      time.Duration `env:"MILESTONES_STATUS_CACHE_TTL" envDefault:"0s"`
	Timezone            string        `env:"MILESTONES_TIMEZONE" envDefault:"UTC"`

	location *time.Location
}

// FrozenStatusList returns the configured status codes that hide a request from dashboards.
func (m *MilestoneOptions) FrozenStatusList() []string {
	parts := strings.FieldsFunc(m.FrozenStatuses, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location is the zone "today" is evaluated in. Defaults to UTC.
func (m *MilestoneOptions) Location() *time.Location {
	if m.location == nil {
		return time.UTC
	}
	return m.location
}

func (m *MilestoneOptions) Validate() error {
	loc, err := time.LoadLocation(strings.TrimSpace(m.Timezone))
	if err != nil {
		return fmt.Errorf("invalid MILESTONES_TIMEZONE=%q: %w", m.Timezone, err)
	}
	m.location = loc
	if m.StatusCacheTTL < 0 || m.StatusCacheTTL > MaxStatusCacheTTL {
		return fmt.Errorf("MILESTONES_STATUS_CACHE_TTL must be between 0s and %s, got %s", MaxStatusCacheTTL, m.StatusCacheTTL)
	}
	return nil
}

type RateLimitOptions struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	// Rate uses the limiter "<limit>-<period>" format, e.g. 100-S or 1000-M.
	Rate string `env:"RATE_LIMIT" envDefault:"100-S"`
}

// WebhookOptions enables the signed inbound webhook routes when Secret is set.
type WebhookOptions struct {
	Secret       string        `env:"WEBHOOK_SECRET" envDefault:""`
	ReplayTTL    time.Duration `env:"WEBHOOK_REPLAY_TTL" envDefault:"24h"`
	MaxBodyBytes int64         `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Metrics       MetricsOptions
	Outbox        OutboxOptions
	Milestones    MilestoneOptions
	RateLimit     RateLimitOptions
	Webhooks      WebhookOptions

	// Comma separated; empty disables CORS handling.
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	RedisURL         string `env:"REDIS_URL" envDefault:""`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:""`
	// Incoming request id header; a uuid is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Milestones.Validate(); err != nil {
		return fmt.Errorf("milestone configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}

func (c *Configuration) AllowedOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
