package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	JWT         JWTConfig
	Scratch     ScratchConfig
	CUPS        CUPSConfig
	Rasterizer  RasterizerConfig
	Office      OfficeConfig
	Dispatch    DispatchConfig
	Idempotency IdempotencyConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxUploadBytes  int64
	UploadDir       string // multipart uploads land here until the run releases them
	ShutdownTimeout time.Duration
}

// JWTConfig holds bearer token settings for the print API
type JWTConfig struct {
	Enabled         bool
	Secret          string
	Issuer          string
	TokenExpiration time.Duration // lifetime of tokens minted by printctl token
}

// ScratchConfig holds temporary artifact settings
type ScratchConfig struct {
	Root               string
	ColocateWithSource bool          // place artifacts next to a local source file
	SweepAge           time.Duration // startup sweep removes leftovers older than this
}

// CUPSConfig holds print subsystem command settings
type CUPSConfig struct {
	LpPath     string
	LpstatPath string
	Timeout    time.Duration
}

// RasterizerConfig holds paginated document rendering settings
type RasterizerConfig struct {
	DPI float64
}

// OfficeConfig holds office automation settings
type OfficeConfig struct {
	BinaryPath  string
	ProfileRoot string
	Timeout     time.Duration
}

// DispatchConfig bounds asynchronous runs
type DispatchConfig struct {
	MaxConcurrentRuns int
	QueueSize         int
	WaitTimeout       time.Duration // how long a synchronous HTTP caller waits for a result
	// AllowedRoots are the directories local path sources may be read from.
	// Empty rejects every local path; uploads and s3:// sources still work.
	AllowedRoots []string
}

// IdempotencyConfig holds exactly-once request guard settings
type IdempotencyConfig struct {
	Enabled bool
	Backend string // memory, redis
	TTL     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DatabaseConfig holds run history database settings
type DatabaseConfig struct {
	Enabled         bool   // record finished runs
	Driver          string // postgres, sqlite
	Path            string // sqlite file path
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// StorageConfig holds S3 source settings
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string // default bucket for s3:/// URIs without a host
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
}

const minJWTSecretLength = 32

// Load reads configuration from config file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PRINTD_ prefix (e.g., PRINTD_SCRATCH_ROOT)
// 2. config.toml, or the file given by configFile
// 3. Built-in defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/printdispatch")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PRINTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults that cannot be told apart from an explicit false
	v.SetDefault("database.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			MaxUploadBytes:  v.GetInt64("http.max_upload_bytes"),
			UploadDir:       v.GetString("http.upload_dir"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		JWT: JWTConfig{
			Enabled:         v.GetBool("jwt.enabled"),
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			TokenExpiration: v.GetDuration("jwt.token_expiration"),
		},
		Scratch: ScratchConfig{
			Root:               v.GetString("scratch.root"),
			ColocateWithSource: v.GetBool("scratch.colocate_with_source"),
			SweepAge:           v.GetDuration("scratch.sweep_age"),
		},
		CUPS: CUPSConfig{
			LpPath:     v.GetString("cups.lp_path"),
			LpstatPath: v.GetString("cups.lpstat_path"),
			Timeout:    v.GetDuration("cups.timeout"),
		},
		Rasterizer: RasterizerConfig{
			DPI: v.GetFloat64("rasterizer.dpi"),
		},
		Office: OfficeConfig{
			BinaryPath:  v.GetString("office.binary_path"),
			ProfileRoot: v.GetString("office.profile_root"),
			Timeout:     v.GetDuration("office.timeout"),
		},
		Dispatch: DispatchConfig{
			MaxConcurrentRuns: v.GetInt("dispatch.max_concurrent_runs"),
			QueueSize:         v.GetInt("dispatch.queue_size"),
			WaitTimeout:       v.GetDuration("dispatch.wait_timeout"),
			AllowedRoots:      v.GetStringSlice("dispatch.allowed_roots"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("idempotency.enabled"),
			Backend: v.GetString("idempotency.backend"),
			TTL:     v.GetDuration("idempotency.ttl"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "printd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8631"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute // synchronous prints wait for the whole run
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = 64 << 20
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "printd"
	}
	if cfg.JWT.TokenExpiration == 0 {
		cfg.JWT.TokenExpiration = 24 * time.Hour
	}
	if cfg.Scratch.SweepAge == 0 {
		cfg.Scratch.SweepAge = 24 * time.Hour
	}
	if cfg.CUPS.LpPath == "" {
		cfg.CUPS.LpPath = "lp"
	}
	if cfg.CUPS.LpstatPath == "" {
		cfg.CUPS.LpstatPath = "lpstat"
	}
	if cfg.CUPS.Timeout == 0 {
		cfg.CUPS.Timeout = 30 * time.Second
	}
	if cfg.Rasterizer.DPI == 0 {
		cfg.Rasterizer.DPI = 96
	}
	if cfg.Office.BinaryPath == "" {
		cfg.Office.BinaryPath = "soffice"
	}
	if cfg.Office.Timeout == 0 {
		cfg.Office.Timeout = 2 * time.Minute
	}
	if cfg.Dispatch.MaxConcurrentRuns == 0 {
		cfg.Dispatch.MaxConcurrentRuns = 4
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 64
	}
	if cfg.Dispatch.WaitTimeout == 0 {
		cfg.Dispatch.WaitTimeout = 2 * time.Minute
	}
	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = "memory"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "printd.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "printd"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "printd"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Rasterizer.DPI < 0 {
		return fmt.Errorf("rasterizer.dpi must be positive, got %f", c.Rasterizer.DPI)
	}
	if c.Dispatch.MaxConcurrentRuns < 0 {
		return fmt.Errorf("dispatch.max_concurrent_runs cannot be negative")
	}
	if c.Dispatch.QueueSize < 0 {
		return fmt.Errorf("dispatch.queue_size cannot be negative")
	}

	if c.JWT.Enabled && len(c.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d characters when jwt.enabled is set", minJWTSecretLength)
	}
	for _, root := range c.Dispatch.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("dispatch.allowed_roots entries must be absolute, got %q", root)
		}
	}

	switch c.Idempotency.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("idempotency.backend must be memory or redis, got %q", c.Idempotency.Backend)
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if c.Database.MaxIdleConns < 0 {
			return fmt.Errorf("database.max_idle_conns cannot be negative")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
				c.Database.MaxIdleConns, c.Database.MaxOpenConns)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Enabled && c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		// Several instances share one printer fleet, so the guard must be shared too.
		if c.Idempotency.Enabled && c.Idempotency.Backend != "redis" {
			return fmt.Errorf("idempotency.backend must be redis in production")
		}
		if !c.JWT.Enabled {
			return fmt.Errorf("jwt.enabled is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
