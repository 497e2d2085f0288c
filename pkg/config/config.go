package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OTEL      OTELConfig
	Triage    TriageConfig
	Queue     QueueConfig
	Allocator AllocatorConfig
	Pool      PoolConfig
	Override  OverrideConfig
	Archive   ArchiveConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	StreamPort     int
	AllowedOrigins string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Enabled  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// TriageConfig holds the tunable heuristics of the scoring engine.
// Duration thresholds are in hours.
type TriageConfig struct {
	RecentOnsetHours    float64
	ShortDurationHours  float64
	MediumDurationHours float64
	ShortDurationBoost  float64
	MediumDurationBoost float64
	LongDurationBoost   float64
	SelfReportWeight    float64
	EmergencyFlagBoost  float64
	TeleconsultMaxScore int
	AbbreviationsFile   string
}

// QueueConfig holds queue tuning
type QueueConfig struct {
	MaxWaitMinutes      float64
	RecalculateInterval time.Duration
	ConsultationMinutes int
	DefaultDoctors      int
}

// AllocatorConfig holds spare doctor allocation tuning
type AllocatorConfig struct {
	AssignThreshold  float64
	ReleaseBelowUtil float64
	Interval         time.Duration
	AutoOnCheckIn    bool
	TimeZone         string
	HistoryWindow    time.Duration
	DecisionHistory  int
}

// PoolConfig holds spare doctor pool limits
type PoolConfig struct {
	MaxPerDepartment int
	MaxPatients      int
}

// OverrideConfig holds emergency override endpoint limits
type OverrideConfig struct {
	RatePerMinute int
	Burst         int
}

// ArchiveConfig controls the asynchronous audit archive
type ArchiveConfig struct {
	Enabled    bool
	BufferSize int
	MaxEntries int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads configuration through lookup, which may layer a secret
// store over the environment
func LoadFrom(lookup func(string) string) (*Config, error) {
	cfg := fromEnv(lookup)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when no environment variable is set
func Defaults() *Config {
	return fromEnv(func(string) string { return "" })
}

func fromEnv(lookup func(string) string) *Config {
	e := envReader(lookup)
	return &Config{
		Server: ServerConfig{
			Host:           e.str("SERVER_HOST", "0.0.0.0"),
			Port:           e.asInt("SERVER_PORT", 8080),
			StreamPort:     e.asInt("STREAM_PORT", 8082),
			AllowedOrigins: e.str("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.asInt("DB_PORT", 5432),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", ""),
			Database: e.str("DB_NAME", "smartcare"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
			Enabled:  e.asBool("DB_ENABLED", false),
		},
		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST", "localhost"),
			Port:     e.asInt("REDIS_PORT", 6379),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.asInt("REDIS_DB", 0),
			Enabled:  e.asBool("REDIS_ENABLED", true),
		},
		OTEL: OTELConfig{
			ServiceName:    e.str("OTEL_SERVICE_NAME", "smartcare-triage"),
			ServiceVersion: e.str("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       e.str("OTEL_ENDPOINT", ""),
			Enabled:        e.asBool("OTEL_ENABLED", false),
		},
		Triage: TriageConfig{
			RecentOnsetHours:    e.asFloat("TRIAGE_RECENT_ONSET_HOURS", 2),
			ShortDurationHours:  e.asFloat("TRIAGE_SHORT_DURATION_HOURS", 24),
			MediumDurationHours: e.asFloat("TRIAGE_MEDIUM_DURATION_HOURS", 72),
			ShortDurationBoost:  e.asFloat("TRIAGE_SHORT_DURATION_BOOST", 0.2),
			MediumDurationBoost: e.asFloat("TRIAGE_MEDIUM_DURATION_BOOST", 0.5),
			LongDurationBoost:   e.asFloat("TRIAGE_LONG_DURATION_BOOST", 0.8),
			SelfReportWeight:    e.asFloat("TRIAGE_SELF_REPORT_WEIGHT", 0.5),
			EmergencyFlagBoost:  e.asFloat("TRIAGE_EMERGENCY_BOOST", 2.0),
			TeleconsultMaxScore: e.asInt("TRIAGE_TELECONSULT_MAX_SCORE", 4),
			AbbreviationsFile:   e.str("TRIAGE_ABBREVIATIONS_FILE", ""),
		},
		Queue: QueueConfig{
			MaxWaitMinutes:      e.asFloat("QUEUE_MAX_WAIT_MINUTES", 180),
			RecalculateInterval: e.asDuration("QUEUE_RECALCULATE_INTERVAL", time.Minute),
			ConsultationMinutes: e.asInt("QUEUE_CONSULTATION_MINUTES", 15),
			DefaultDoctors:      e.asInt("QUEUE_DEFAULT_DOCTORS", 2),
		},
		Allocator: AllocatorConfig{
			AssignThreshold:  e.asFloat("ALLOCATOR_ASSIGN_THRESHOLD", 0.65),
			ReleaseBelowUtil: e.asFloat("ALLOCATOR_RELEASE_BELOW_UTILIZATION", 45),
			Interval:         e.asDuration("ALLOCATOR_INTERVAL", 2*time.Minute),
			AutoOnCheckIn:    e.asBool("ALLOCATOR_AUTO_ON_CHECKIN", true),
			TimeZone:         e.str("HOSPITAL_TIMEZONE", "UTC"),
			HistoryWindow:    e.asDuration("ALLOCATOR_HISTORY_WINDOW", 30*time.Minute),
			DecisionHistory:  e.asInt("ALLOCATOR_DECISION_HISTORY", 100),
		},
		Pool: PoolConfig{
			MaxPerDepartment: e.asInt("POOL_MAX_PER_DEPARTMENT", 3),
			MaxPatients:      e.asInt("POOL_MAX_PATIENTS", 10),
		},
		Override: OverrideConfig{
			RatePerMinute: e.asInt("OVERRIDE_RATE_PER_MINUTE", 30),
			Burst:         e.asInt("OVERRIDE_BURST", 5),
		},
		Archive: ArchiveConfig{
			Enabled:    e.asBool("ARCHIVE_ENABLED", false),
			BufferSize: e.asInt("ARCHIVE_BUFFER_SIZE", 256),
			MaxEntries: e.asInt("ACTIVITY_MAX_ENTRIES", 1000),
		},
	}
}

// Validate rejects settings the services cannot work with
func (c *Config) Validate() error {
	if c.Queue.MaxWaitMinutes <= 0 {
		return fmt.Errorf("QUEUE_MAX_WAIT_MINUTES must be positive, got %v", c.Queue.MaxWaitMinutes)
	}
	if c.Queue.ConsultationMinutes <= 0 {
		return fmt.Errorf("QUEUE_CONSULTATION_MINUTES must be positive, got %d", c.Queue.ConsultationMinutes)
	}
	if c.Pool.MaxPerDepartment < 1 {
		return fmt.Errorf("POOL_MAX_PER_DEPARTMENT must be at least 1, got %d", c.Pool.MaxPerDepartment)
	}
	if c.Pool.MaxPatients < 1 {
		return fmt.Errorf("POOL_MAX_PATIENTS must be at least 1, got %d", c.Pool.MaxPatients)
	}
	if c.Allocator.AssignThreshold < 0 || c.Allocator.AssignThreshold > 1 {
		return fmt.Errorf("ALLOCATOR_ASSIGN_THRESHOLD must be within [0,1], got %v", c.Allocator.AssignThreshold)
	}
	if _, err := time.LoadLocation(c.Allocator.TimeZone); err != nil {
		return fmt.Errorf("invalid HOSPITAL_TIMEZONE %q: %w", c.Allocator.TimeZone, err)
	}
	if c.Triage.ShortDurationHours <= c.Triage.RecentOnsetHours || c.Triage.MediumDurationHours <= c.Triage.ShortDurationHours {
		return fmt.Errorf("triage duration thresholds must be increasing")
	}
	return nil
}

// Location returns the hospital time zone used for peak-hour detection
func (c *AllocatorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type envReader func(string) string

func (e envReader) str(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) asInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (e envReader) asFloat(key string, defaultValue float64) float64 {
	if value := e(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (e envReader) asBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func (e envReader) asDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
