package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illmade-knight/go-mqttnorth/pkg/checkpoint"
	"github.com/illmade-knight/go-mqttnorth/pkg/microservice"
	"github.com/illmade-knight/go-mqttnorth/pkg/north"
	"github.com/illmade-knight/go-mqttnorth/pkg/northtask"
	"gopkg.in/yaml.v3"
)

// ServiceConfig is the YAML file read by the forwarder process.
type ServiceConfig struct {
	microservice.BaseConfig `yaml:",inline"`

	// Plugin is the host configuration category handed to north.Init.
	Plugin north.HostConfig `yaml:"plugin"`
	Task   northtask.TaskConfig `yaml:"task"`
	Source struct {
		Path string `yaml:"path"`
	} `yaml:"source"`
	Checkpoint struct {
		// Redis is optional; checkpoints stay in memory without it.
		Redis *checkpoint.RedisConfig `yaml:"redis"`
	} `yaml:"checkpoint"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoadServiceConfig reads and validates the YAML configuration at path.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := &ServiceConfig{}
	cfg.LogLevel = "info"
	cfg.HTTPPort = ":8080"
	cfg.ShutdownTimeout = 10 * time.Second
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", path, err)
	}

	if cfg.Source.Path == "" {
		return nil, errors.New("validation error: source.path is required")
	}
	if len(cfg.Plugin) == 0 {
		return nil, errors.New("validation error: plugin configuration is empty")
	}
	if cfg.Checkpoint.Redis != nil && cfg.Checkpoint.Redis.Addr == "" {
		return nil, errors.New("validation error: checkpoint.redis.addr is required when redis is configured")
	}
	return cfg, nil
}
