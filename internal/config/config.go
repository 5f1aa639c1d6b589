package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Services ServicesConfig `yaml:"services"`
	LiveKit  LiveKitConfig  `yaml:"livekit"`
	Call     CallConfig     `yaml:"call"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	BasePath    string `yaml:"base_path"`
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	CORSOrigins string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
	SecretKey  string `yaml:"secret_key"`
}

type ServicesConfig struct {
	UserServiceURL string `yaml:"user_service_url"`
}

type LiveKitConfig struct {
	Host      string `yaml:"host"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	WSUrl     string `yaml:"ws_url"`
}

// CallConfig holds the call-matching knobs: how long an invitation stays
// answerable, how many trial seconds a free user gets, and how recent an
// availability heartbeat must be to count for matching.
type CallConfig struct {
	InviteTimeout      time.Duration `yaml:"invite_timeout"`
	TrialBudgetSeconds int           `yaml:"trial_budget_seconds"`
	AvailabilityWindow time.Duration `yaml:"availability_window"`
	MediaTokenTTL      time.Duration `yaml:"media_token_ttl"`
	SweepInterval      string        `yaml:"sweep_interval"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8004,
			BasePath:    "/api/calls",
			Env:         "dev",
			LogLevel:    "debug",
			CORSOrigins: "*",
		},
		Call: CallConfig{
			InviteTimeout:      60 * time.Second,
			TrialBudgetSeconds: 300,
			AvailabilityWindow: 15 * time.Minute,
			MediaTokenTTL:      time.Hour,
			SweepInterval:      "@every 30s",
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if corsOrigins := os.Getenv("CORS_ORIGINS"); corsOrigins != "" {
		cfg.Server.CORSOrigins = corsOrigins
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if userURL := os.Getenv("USER_SERVICE_URL"); userURL != "" {
		cfg.Services.UserServiceURL = userURL
	}
	if lkHost := os.Getenv("LIVEKIT_HOST"); lkHost != "" {
		cfg.LiveKit.Host = lkHost
	}
	if lkKey := os.Getenv("LIVEKIT_API_KEY"); lkKey != "" {
		cfg.LiveKit.APIKey = lkKey
	}
	if lkSecret := os.Getenv("LIVEKIT_API_SECRET"); lkSecret != "" {
		cfg.LiveKit.APISecret = lkSecret
	}
	if lkWSUrl := os.Getenv("LIVEKIT_WS_URL"); lkWSUrl != "" {
		cfg.LiveKit.WSUrl = lkWSUrl
	}
	if timeout := os.Getenv("CALL_INVITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Call.InviteTimeout = d
		}
	}
	if budget := os.Getenv("CALL_TRIAL_BUDGET_SECONDS"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			cfg.Call.TrialBudgetSeconds = b
		}
	}

	return cfg, nil
}
