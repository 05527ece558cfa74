package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for minimal container images

	"github.com/runcrew/service-running/internal/common/config"
	"github.com/runcrew/service-running/internal/domain/course"
)

// CourseConfig tunes course editing.
type CourseConfig struct {
	MaxWaypoints        int
	SessionTTL          time.Duration
	SessionCacheSize    int
	DefaultPaceSecPerKm int
}

// ServiceConfig holds all configuration for the running service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	Location    *time.Location
	DBConfig    config.DatabaseConfig
	JWTConfig   config.JWTConfig
	KafkaConfig config.KafkaConfig
	RedisConfig config.RedisConfig
	LogConfig   config.LogConfig
	Course      CourseConfig
}

// Load reads configuration from RUNNING_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("RUNNING")
	if err != nil {
		return nil, err
	}

	v.SetDefault("DB_NAME", "running")
	v.SetDefault("TIMEZONE", "Asia/Seoul")
	v.SetDefault("COURSE_MAX_WAYPOINTS", course.DefaultMaxWaypoints)
	v.SetDefault("COURSE_SESSION_TTL", "30m")
	v.SetDefault("COURSE_SESSION_CACHE_SIZE", 10000)
	v.SetDefault("COURSE_DEFAULT_PACE_SEC_PER_KM", course.DefaultPaceSecPerKm)

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	jwtConfig := config.LoadJWTConfig(v)
	if jwtConfig.Secret == "" {
		return nil, fmt.Errorf("RUNNING_JWT_SECRET is required")
	}

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		Location:    loc,
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   jwtConfig,
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		LogConfig:   config.LoadLogConfig(v),
		Course: CourseConfig{
			MaxWaypoints:        v.GetInt("COURSE_MAX_WAYPOINTS"),
			SessionTTL:          v.GetDuration("COURSE_SESSION_TTL"),
			SessionCacheSize:    v.GetInt("COURSE_SESSION_CACHE_SIZE"),
			DefaultPaceSecPerKm: v.GetInt("COURSE_DEFAULT_PACE_SEC_PER_KM"),
		},
	}, nil
}
