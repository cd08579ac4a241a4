package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"intelgraph-lab/internal/domain/models"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig           `mapstructure:"app"`
	Server    ServerConfig        `mapstructure:"server"`
	Database  DatabaseConfig      `mapstructure:"database"`
	Redis     RedisConfig         `mapstructure:"redis"`
	Neo4j     Neo4jConfig         `mapstructure:"neo4j"`
	NATS      NATSConfig          `mapstructure:"nats"`
	Auth      AuthConfig          `mapstructure:"auth"`
	CORS      CORSConfig          `mapstructure:"cors"`
	RateLimit RateLimitConfig     `mapstructure:"ratelimit"`
	Logger    LoggerConfig        `mapstructure:"logger"`
	Worker    WorkerConfig        `mapstructure:"worker"`
	Engine    models.EngineConfig `mapstructure:"engine"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Neo4jConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	URI                string `mapstructure:"uri"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	Database           string `mapstructure:"database"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MaxLifetimeMinutes int    `mapstructure:"max_lifetime_minutes"`
}

type NATSConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	URL        string             `mapstructure:"url"`
	StreamName string             `mapstructure:"stream_name"`
	Subjects   NATSSubjectsConfig `mapstructure:"subjects"`
}

type NATSSubjectsConfig struct {
	ReportReady       string `mapstructure:"report_ready"`
	AnalysisStarted   string `mapstructure:"analysis_started"`
	AnalysisFailed    string `mapstructure:"analysis_failed"`
	ThreatEscalated   string `mapstructure:"threat_escalated"`
	RecordsIngested   string `mapstructure:"records_ingested"`
}

type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"` // per analysis run, 0 = unbounded
}

// Load reads configuration from file and environment variables. The engine
// section is validated before the config is handed out; an invalid engine
// configuration aborts startup.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/intelgraph-lab")
	}

	// Environment variables
	v.SetEnvPrefix("INTELGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("redis.tls", "INTELGRAPH_REDIS_TLS")
	v.BindEnv("redis.host", "INTELGRAPH_REDIS_HOST")
	v.BindEnv("redis.port", "INTELGRAPH_REDIS_PORT")
	v.BindEnv("redis.password", "INTELGRAPH_REDIS_PASSWORD")
	v.BindEnv("database.host", "INTELGRAPH_DATABASE_HOST")
	v.BindEnv("database.port", "INTELGRAPH_DATABASE_PORT")
	v.BindEnv("database.user", "INTELGRAPH_DATABASE_USER")
	v.BindEnv("database.password", "INTELGRAPH_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "INTELGRAPH_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "INTELGRAPH_DATABASE_SSLMODE")
	v.BindEnv("neo4j.enabled", "INTELGRAPH_NEO4J_ENABLED")
	v.BindEnv("nats.enabled", "INTELGRAPH_NATS_ENABLED")
	v.BindEnv("app.environment", "INTELGRAPH_APP_ENVIRONMENT")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Engine tunables keep their defaults unless explicitly overridden.
	cfg := Config{Engine: models.DefaultEngineConfig()}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}
