package config

import (
	"fmt"
	"planets-engine/internal/shared/utils"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Frontend  FrontendConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Energy    EnergyConfig
	Queue     QueueConfig
	Movement  MovementConfig
	Catalog   CatalogConfig
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
	CookieSecure    bool
	CookieSameSite  string
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

type SchedulerConfig struct {
	Enabled            bool
	TickInterval       time.Duration
	LeaderLockTTL      time.Duration
	SnapshotEveryTicks int
}

type EnergyConfig struct {
	ReservationAccounting bool
}

type QueueConfig struct {
	CancelRefundPercent int
	// MaxBatch caps the quantity of one unit or defense queue item.
	MaxBatch            int
	SaturationThreshold float64
	SaturationFloor     float64
}

type MovementConfig struct {
	RegionWeight   float64
	SystemWeight   float64
	BodyWeight     float64
	MinTravelHours float64
}

type CatalogConfig struct {
	Path string
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

// Load reads the configuration from the environment without touching GlobalConfig.
func Load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Auth:      loadAuthConfig(),
		Frontend:  loadFrontendConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
		Scheduler: loadSchedulerConfig(),
		Energy:    loadEnergyConfig(),
		Queue:     loadQueueConfig(),
		Movement:  loadMovementConfig(),
		Catalog:   loadCatalogConfig(),
	}

	return config, nil
}

// Default returns the built-in game balance defaults with an in-memory database.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Environment: "development"},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			SQLitePath:   ":memory:",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth:      AuthConfig{TokenExpiration: 24 * time.Hour, CookieSameSite: "lax"},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Enabled: true, TickInterval: time.Minute, LeaderLockTTL: 3 * time.Minute, SnapshotEveryTicks: 60},
		Energy:    EnergyConfig{ReservationAccounting: true},
		Queue: QueueConfig{
			CancelRefundPercent: 50,
			MaxBatch:            10000,
			SaturationThreshold: 0.9,
			SaturationFloor:     0.5,
		},
		Movement: MovementConfig{
			RegionWeight:   10,
			SystemWeight:   1,
			BodyWeight:     0.2,
			MinTravelHours: 0.05,
		},
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  utils.GetEnv("REDIS_ENABLED", "false") == "true",
		URL:      utils.GetEnv("REDIS_URL", ""),
		Host:     utils.GetEnv("REDIS_HOST", "localhost"),
		Port:     utils.GetEnv("REDIS_PORT", "6379"),
		Password: utils.GetEnv("REDIS_PASSWORD", ""),
		DB:       utils.GetEnvInt("REDIS_DB", 0),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "8080"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:  utils.GetEnvDuration("SERVER_READ_TIMEOUT_SECONDS", 15, time.Second),
		WriteTimeout: utils.GetEnvDuration("SERVER_WRITE_TIMEOUT_SECONDS", 15, time.Second),
		IdleTimeout:  utils.GetEnvDuration("SERVER_IDLE_TIMEOUT_SECONDS", 60, time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	driver := utils.GetEnv("DB_DRIVER", "postgres")

	maxOpenConns := utils.GetEnvInt("DB_MAX_OPEN_CONNS", 25)
	maxIdleConns := utils.GetEnvInt("DB_MAX_IDLE_CONNS", 5)
	if driver == "sqlite" {
		// SQLite serialises writers; a single connection keeps transactions from
		// failing with SQLITE_BUSY and keeps :memory: databases shared.
		maxOpenConns = 1
		maxIdleConns = 1
	}

	return DatabaseConfig{
		Driver:          driver,
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "planets"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		SQLitePath:      utils.GetEnv("DB_SQLITE_PATH", "planets.db"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: utils.GetEnvDuration("DB_CONN_MAX_LIFETIME_MINUTES", 5, time.Minute),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       utils.GetEnv("JWT_SECRET", ""),
		TokenExpiration: utils.GetEnvDuration("JWT_EXPIRATION_HOURS", 24, time.Hour),
		CookieSecure:    utils.GetEnvBool("COOKIE_SECURE", utils.GetEnv("ENVIRONMENT", "development") == "production"),
		CookieSameSite:  utils.GetEnv("COOKIE_SAMESITE", "lax"),
	}
}

func loadFrontendConfig() FrontendConfig {
	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: utils.GetEnv("CORS_DEBUG", "") == "true",
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		JSONFormat: environment == "production",
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true",
		RequestsPerSecond: utils.GetEnvFloat("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		BurstSize:         utils.GetEnvInt("RATE_LIMIT_BURST_SIZE", 20),
		TrustProxy:        utils.GetEnvBool("RATE_LIMIT_TRUST_PROXY", false),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:            utils.GetEnvBool("SCHEDULER_ENABLED", true),
		TickInterval:       utils.GetEnvDuration("SCHEDULER_TICK_INTERVAL_SECONDS", 60, time.Second),
		LeaderLockTTL:      utils.GetEnvDuration("SCHEDULER_LEADER_TTL_SECONDS", 180, time.Second),
		SnapshotEveryTicks: utils.GetEnvInt("SCHEDULER_SNAPSHOT_EVERY_TICKS", 60),
	}
}

func loadEnergyConfig() EnergyConfig {
	return EnergyConfig{
		ReservationAccounting: utils.GetEnvBool("ENERGY_RESERVATION_ACCOUNTING", true),
	}
}

func loadQueueConfig() QueueConfig {
	return QueueConfig{
		CancelRefundPercent: utils.GetEnvInt("QUEUE_CANCEL_REFUND_PERCENT", 50),
		MaxBatch:            utils.GetEnvInt("QUEUE_MAX_BATCH", 10000),
		SaturationThreshold: utils.GetEnvFloat("QUEUE_SATURATION_THRESHOLD", 0.9),
		SaturationFloor:     utils.GetEnvFloat("QUEUE_SATURATION_FLOOR", 0.5),
	}
}

func loadMovementConfig() MovementConfig {
	return MovementConfig{
		RegionWeight:   utils.GetEnvFloat("MOVEMENT_REGION_WEIGHT", 10),
		SystemWeight:   utils.GetEnvFloat("MOVEMENT_SYSTEM_WEIGHT", 1),
		BodyWeight:     utils.GetEnvFloat("MOVEMENT_BODY_WEIGHT", 0.2),
		MinTravelHours: utils.GetEnvFloat("MOVEMENT_MIN_TRAVEL_HOURS", 0.05),
	}
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path: utils.GetEnv("CATALOG_PATH", ""),
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL_SECONDS must be positive")
	}

	if c.Scheduler.LeaderLockTTL <= c.Scheduler.TickInterval {
		return fmt.Errorf("SCHEDULER_LEADER_TTL_SECONDS must be longer than SCHEDULER_TICK_INTERVAL_SECONDS")
	}

	if c.Queue.CancelRefundPercent < 0 || c.Queue.CancelRefundPercent > 100 {
		return fmt.Errorf("QUEUE_CANCEL_REFUND_PERCENT must be between 0 and 100")
	}

	if c.Queue.MaxBatch < 1 {
		return fmt.Errorf("QUEUE_MAX_BATCH must be at least 1")
	}

	if c.Queue.SaturationFloor <= 0 || c.Queue.SaturationFloor > 1 {
		return fmt.Errorf("QUEUE_SATURATION_FLOOR must be in (0, 1]")
	}

	if c.Movement.RegionWeight <= 0 || c.Movement.SystemWeight <= 0 || c.Movement.BodyWeight <= 0 {
		return fmt.Errorf("movement distance weights must be positive")
	}

	return nil
}

// DataSourceName returns the driver name and DSN for the configured database.
func (c *Config) DataSourceName() (string, string) {
	if c.Database.Driver == "sqlite" {
		return "sqlite", c.Database.SQLitePath
	}
	return "postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
