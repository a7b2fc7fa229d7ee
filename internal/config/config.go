package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"quizdigest/pkg/config"
)

type LMSConfig struct {
	BaseURL        string `yaml:"base_url"`
	WebURL         string `yaml:"web_url"`
	Token          string `yaml:"token"`
	CourseID       string `yaml:"course_id"`
	QuizID         string `yaml:"quiz_id"`
	AssignmentID   string `yaml:"assignment_id"`
	PerPage        int    `yaml:"per_page"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
}

type DigestConfig struct {
	Title string `yaml:"title"`
}

type CheckpointConfig struct {
	Backend  string `yaml:"backend"` // file, redis, postgres, sqlite
	Path     string `yaml:"path"`    // file / sqlite
	Key      string `yaml:"key"`     // redis key or table row name
	Timezone string `yaml:"timezone"`
}

type Config struct {
	LMS        LMSConfig            `yaml:"lms"`
	SendGrid   SendGridConfig       `yaml:"sendgrid"`
	Digest     DigestConfig         `yaml:"digest"`
	Checkpoint CheckpointConfig     `yaml:"checkpoint"`
	DB         config.DBConfig      `yaml:"db"`
	Redis      config.RedisConfig   `yaml:"redis"`
	MQ         config.MQConfig      `yaml:"mq"`
	Metrics    config.MetricsConfig `yaml:"metrics"`

	location *time.Location
}

// Load reads config/base.yaml (+ CONFIG_ENV overlay, secrets.env) and applies env overrides.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := Default()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	overrideFromEnv(cfg)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideMetricsFromEnv(&cfg.Metrics)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings of the F-1 Mandatory Workshop deployment.
func Default() *Config {
	cfg := &Config{
		LMS: LMSConfig{
			BaseURL:        "https://calstatela.instructure.com/api/v1/",
			WebURL:         "https://calstatela.instructure.com",
			CourseID:       "94338",
			QuizID:         "410870",
			AssignmentID:   "1562953",
			PerPage:        100,
			TimeoutSeconds: 30,
		},
		Digest: DigestConfig{
			Title: "F-1 Mandatory Workshop",
		},
		Checkpoint: CheckpointConfig{
			Backend:  "file",
			Path:     "last_run.txt",
			Key:      "quizdigest:last_run",
			Timezone: "America/Los_Angeles",
		},
		Metrics: config.MetricsConfig{
			Job: "quizdigest",
		},
	}
	return cfg
}

func overrideFromEnv(cfg *Config) {
	if token := os.Getenv("CANVAS_TOKEN"); token != "" {
		cfg.LMS.Token = token
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.SendGrid.APIKey = key
	}
	if backend := os.Getenv("CHECKPOINT_BACKEND"); backend != "" {
		cfg.Checkpoint.Backend = backend
	}
	if path := os.Getenv("CHECKPOINT_PATH"); path != "" {
		cfg.Checkpoint.Path = path
	}
	if tz := os.Getenv("CHECKPOINT_TIMEZONE"); tz != "" {
		cfg.Checkpoint.Timezone = tz
	}
}

// Validate checks required fields and resolves the checkpoint timezone.
func (c *Config) Validate() error {
	switch {
	case c.LMS.Token == "":
		return &ConfigError{Field: "lms.token", Message: "required"}
	case c.SendGrid.APIKey == "":
		return &ConfigError{Field: "sendgrid.api_key", Message: "required"}
	case c.LMS.CourseID == "" || c.LMS.QuizID == "" || c.LMS.AssignmentID == "":
		return &ConfigError{Field: "lms.course_id/quiz_id/assignment_id", Message: "required"}
	case c.LMS.BaseURL == "":
		return &ConfigError{Field: "lms.base_url", Message: "required"}
	}

	switch c.Checkpoint.Backend {
	case "file", "sqlite":
		if c.Checkpoint.Path == "" {
			return &ConfigError{Field: "checkpoint.path", Message: "required for " + c.Checkpoint.Backend}
		}
	case "redis":
		if c.Redis.Addr == "" {
			return &ConfigError{Field: "redis.addr", Message: "required for redis backend"}
		}
	case "postgres":
		if c.DB.Host == "" {
			return &ConfigError{Field: "db.host", Message: "required for postgres backend"}
		}
	default:
		return &ConfigError{Field: "checkpoint.backend", Message: "unknown backend " + c.Checkpoint.Backend}
	}

	loc, err := time.LoadLocation(c.Checkpoint.Timezone)
	if err != nil {
		return &ConfigError{Field: "checkpoint.timezone", Message: err.Error()}
	}
	c.location = loc
	return nil
}

// Location is the zone checkpoints are stored and displayed in. Valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *LMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
