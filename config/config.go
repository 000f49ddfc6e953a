/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DOCSTORE_MONGO_URI.
const EnvPrefix = "DOCSTORE_"

// Backend names.
const (
	BackendMemory   = "memory"
	BackendMongoDB  = "mongodb"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Backend  string         `yaml:"backend"  env:"BACKEND"  validate:"required,oneof=memory mongodb dynamodb"`
	Mongo    MongoConfig    `yaml:"mongo"    envPrefix:"MONGO_"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb" envPrefix:"DDB_"`
	Log      LogConfig      `yaml:"log"      envPrefix:"LOG_"`
	Metrics  MetricsConfig  `yaml:"metrics"  envPrefix:"METRICS_"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"      env:"URI"`
	Database string `yaml:"database" env:"DATABASE"`
}

type DynamoDBConfig struct {
	Region    string `yaml:"region"     env:"REGION"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Table     string `yaml:"table"      env:"TABLE"`
	Endpoint  string `yaml:"endpoint"   env:"ENDPOINT" validate:"omitempty,url"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `yaml:"json"  env:"JSON"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"   env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when nothing is set: the
// in-memory backend with info logging.
func Default() *Config {
	return &Config{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			Database: "docstore",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "docstore",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at path and
// DOCSTORE_* environment variables, in increasing precedence. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and the settings the chosen backend needs.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(backendSettings, Config{})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func backendSettings(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	switch cfg.Backend {
	case BackendMongoDB:
		if cfg.Mongo.URI == "" {
			sl.ReportError(cfg.Mongo.URI, "Mongo.URI", "URI", "required_for_backend", cfg.Backend)
		}
		if cfg.Mongo.Database == "" {
			sl.ReportError(cfg.Mongo.Database, "Mongo.Database", "Database", "required_for_backend", cfg.Backend)
		}
	case BackendDynamoDB:
		if cfg.DynamoDB.Region == "" {
			sl.ReportError(cfg.DynamoDB.Region, "DynamoDB.Region", "Region", "required_for_backend", cfg.Backend)
		}
		if cfg.DynamoDB.Table == "" {
			sl.ReportError(cfg.DynamoDB.Table, "DynamoDB.Table", "Table", "required_for_backend", cfg.Backend)
		}
	}
}
