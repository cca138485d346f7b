package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Redis                     RedisConfig
	Kafka                     KafkaConfig
	Log                       LogConfig
	Schedule                  ScheduleConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string // mysql, postgres or sqlite
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the address of the Redis instance used for booking locks.
// An empty Addr disables Redis and falls back to in-process locking.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	LockTTL  time.Duration
}

// KafkaConfig holds the appointment event stream settings.
// No brokers means events are dropped.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string
	Pretty bool
}

// ScheduleConfig describes the clinic business hours used to build slots.
type ScheduleConfig struct {
	Timezone        string
	Locale          string
	StartHour       int
	EndHour         int
	IntervalMinutes int
	WindowDays      int
}

// Location resolves the clinic timezone. "Local" and "" map to time.Local.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
		DSN:      getEnv("DB_DSN", ""),
	}
	if dbConfig.DSN == "" {
		dsn, err := buildDSN(dbConfig)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = dsn
	}

	jwtExpMinutes, err := getInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	jwtRefreshExpHours, err := getInt("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	if err != nil {
		return nil, err
	}

	lockTTL, err := time.ParseDuration(getEnv("REDIS_LOCK_TTL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_LOCK_TTL: %w", err)
	}

	schedule := ScheduleConfig{
		Timezone: getEnv("CLINIC_TIMEZONE", "Local"),
		Locale:   getEnv("CLINIC_LOCALE", "ru"),
	}
	if schedule.StartHour, err = getInt("CLINIC_START_HOUR", 9); err != nil {
		return nil, err
	}
	if schedule.EndHour, err = getInt("CLINIC_END_HOUR", 18); err != nil {
		return nil, err
	}
	if schedule.IntervalMinutes, err = getInt("CLINIC_SLOT_MINUTES", 60); err != nil {
		return nil, err
	}
	if schedule.WindowDays, err = getInt("CLINIC_WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if _, err := schedule.Location(); err != nil {
		return nil, err
	}

	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	environment := getEnv("APP_ENV", "development")

	return &Config{
		Port:             getEnv("PORT", "3001"),
		Origin:           getEnv("ORIGIN", "http://localhost:3000"),
		Environment:      environment,
		JWTSecret:        getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:         dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			LockTTL:  lockTTL,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   getEnv("KAFKA_APPOINTMENTS_TOPIC", "clinic.appointments"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: environment == "development",
		},
		Schedule:                  schedule,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
	}, nil
}

func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		// Timestamps are written in UTC by the repository.
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.Username, db.Password, db.Host, db.Port, db.Name), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			db.Host, db.Port, db.Username, db.Password, db.Name), nil
	case "sqlite":
		return db.Name + ".db", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
