package config

import (
	"fmt"
	"time"

	pkgconfig "watchdog/pkg/config"
)

type Config struct {
	DB        pkgconfig.DBConfig        `yaml:"db"`
	MQ        pkgconfig.MQConfig        `yaml:"mq"`
	Redis     pkgconfig.RedisConfig     `yaml:"redis"`
	JWT       pkgconfig.JWTConfig       `yaml:"jwt"`
	Server    pkgconfig.ServerConfig    `yaml:"server"`
	OTel      pkgconfig.OTelConfig      `yaml:"otel"`
	Outbox    pkgconfig.OutboxConfig    `yaml:"outbox"`
	Lifecycle pkgconfig.LifecycleConfig `yaml:"lifecycle"`
	Log       pkgconfig.LogConfig       `yaml:"log"`
}

// Load reads config/base.yaml, the CONFIG_ENV overlay and env overrides.
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	raw, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := pkgconfig.Decode(raw, cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideLifecycleFromEnv(&cfg.Lifecycle)

	if cfg.Server.Store != "postgres" && cfg.Server.Store != "memory" {
		return nil, fmt.Errorf("server.store must be postgres or memory, got %q", cfg.Server.Store)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret must be set")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DB: pkgconfig.DBConfig{
			Host:          "localhost",
			Port:          5432,
			MaxConns:      10,
			SlowThreshold: 100 * time.Millisecond,
		},
		JWT:    pkgconfig.JWTConfig{TTL: 24 * time.Hour},
		MQ:     pkgconfig.MQConfig{Queue: "watchdog.audit_archive", Prefetch: 10},
		Server: pkgconfig.ServerConfig{Port: ":8080", Store: "postgres"},
		OTel:   pkgconfig.OTelConfig{ServiceName: "watchdog"},
		Outbox: pkgconfig.OutboxConfig{
			Enabled:    true,
			Interval:   time.Second,
			BatchSize:  100,
			MaxRetries: 5,
		},
		Log: pkgconfig.LogConfig{Level: "info"},
	}
}
