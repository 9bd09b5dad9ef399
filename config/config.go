package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dt-server/forecast"

	"github.com/spf13/viper"
)

// Resources file paths
const RESOURCES_PATH_PREFIX = "resources"
const DETECTIONS_SAMPLE_RESOURCE = "detections_sample.json"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverREST     = "rest"
	DriverFixture  = "fixture"
)

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Redis     RedisConfig         `mapstructure:"redis"`
	Cache     CacheConfig         `mapstructure:"cache"`
	Store     StoreConfig         `mapstructure:"store"`
	Forecast  forecast.Thresholds `mapstructure:"forecast"`
	Refresher RefresherConfig     `mapstructure:"refresher"`
	Logging   LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CacheConfig struct {
	LocalSize int           `mapstructure:"local_size"`
	LocalTTL  time.Duration `mapstructure:"local_ttl"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	REST     RESTConfig     `mapstructure:"rest"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Fixture  string         `mapstructure:"fixture"`
}

type PostgresConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Database    string        `mapstructure:"database"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	MaxConns    int32         `mapstructure:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns"`
	MaxConnLife time.Duration `mapstructure:"max_conn_life"`
	MaxConnIdle time.Duration `mapstructure:"max_conn_idle"`
}

// URL returns the connection URL understood by pgx and golang-migrate.
func (p PostgresConfig) URL(scheme string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, p.Username, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RESTConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RefresherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Windows  []int         `mapstructure:"windows"`
	Locales  []string      `mapstructure:"locales"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads configuration from defaults, an optional config.yaml and
// DT_SERVER_* environment variables.
type Manager struct {
	v      *viper.Viper
	config *Config
}

func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile behaves like NewManager but reads the given file instead of
// searching the default paths. An empty path searches.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.load(path); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) load(path string) error {
	v := m.v
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dt-server/")
	}

	v.SetEnvPrefix("DT_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "redis:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "30m")

	v.SetDefault("cache.local_size", 256)
	v.SetDefault("cache.local_ttl", "5m")

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.database", "dt_server")
	v.SetDefault("store.postgres.username", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.ssl_mode", "disable")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 1)
	v.SetDefault("store.postgres.max_conn_life", "1h")
	v.SetDefault("store.postgres.max_conn_idle", "30m")
	v.SetDefault("store.sqlite.path", "data/detections.db")
	v.SetDefault("store.rest.base_url", "")
	v.SetDefault("store.rest.api_key", "")
	v.SetDefault("store.rest.timeout", "10s")
	v.SetDefault("store.rest.rate_limit", 5)
	v.SetDefault("store.breaker.max_requests", 1)
	v.SetDefault("store.breaker.interval", "60s")
	v.SetDefault("store.breaker.timeout", "30s")
	v.SetDefault("store.breaker.consecutive_failures", 5)
	v.SetDefault("store.fixture", GetResourcePath(DETECTIONS_SAMPLE_RESOURCE))

	th := forecast.DefaultThresholds()
	v.SetDefault("forecast.trend_slope", th.TrendSlope)
	v.SetDefault("forecast.min_detections", th.MinDetections)
	v.SetDefault("forecast.min_weekly_buckets", th.MinWeeklyBuckets)
	v.SetDefault("forecast.recent_weeks", th.RecentWeeks)
	v.SetDefault("forecast.high_recent_count", th.HighRecentCount)
	v.SetDefault("forecast.medium_recent_count", th.MediumRecentCount)
	v.SetDefault("forecast.escalation_ratio", th.EscalationRatio)
	v.SetDefault("forecast.confidence_offset", th.ConfidenceOffset)
	v.SetDefault("forecast.confidence_floor", th.ConfidenceFloor)
	v.SetDefault("forecast.confidence_ceiling", th.ConfidenceCeiling)
	v.SetDefault("forecast.projection_weeks", th.ProjectionWeeks)
	v.SetDefault("forecast.forecast_history_days", th.ForecastHistoryDays)
	v.SetDefault("forecast.min_forecast_days", th.MinForecastDays)
	v.SetDefault("forecast.forecast_horizon_days", th.ForecastHorizonDays)

	v.SetDefault("refresher.enabled", true)
	v.SetDefault("refresher.interval", "30m")
	v.SetDefault("refresher.windows", []int{30, 60, 90})
	v.SetDefault("refresher.locales", []string{"en", "ne"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate rejects configurations the server cannot start with.
func (m *Manager) Validate() error {
	cfg := m.config

	switch cfg.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverFixture:
	case DriverREST:
		if cfg.Store.REST.BaseURL == "" {
			return fmt.Errorf("store.rest.base_url is required for the %q driver", DriverREST)
		}
	default:
		return fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}

	if cfg.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if cfg.Cache.LocalSize <= 0 {
		return fmt.Errorf("invalid local cache size: %d", cfg.Cache.LocalSize)
	}
	if cfg.Refresher.Enabled {
		if len(cfg.Refresher.Windows) == 0 {
			return fmt.Errorf("refresher.windows must not be empty")
		}
		if cfg.Refresher.Interval <= 0 {
			return fmt.Errorf("invalid refresher interval: %s", cfg.Refresher.Interval)
		}
	}

	th := cfg.Forecast
	if th.ConfidenceFloor > th.ConfidenceCeiling {
		return fmt.Errorf("forecast.confidence_floor %.2f exceeds ceiling %.2f", th.ConfidenceFloor, th.ConfidenceCeiling)
	}
	if th.MinForecastDays <= 0 || th.ForecastHistoryDays < th.MinForecastDays {
		return fmt.Errorf("forecast history (%d days) must cover the minimum of %d days", th.ForecastHistoryDays, th.MinForecastDays)
	}
	return nil
}

// BaseDir returns the absolute path of the project root directory
func BaseDir() string {
	if root := os.Getenv("PROJECT_ROOT"); root != "" {
		return root
	}

	wd, err := os.Getwd()
	if err != nil {
		panic("Unable to determine working directory: " + err.Error())
	}

	return wd
}

func GetResourcePath(resourceFile string) string {
	return filepath.Join(BaseDir(), RESOURCES_PATH_PREFIX, resourceFile)
}
