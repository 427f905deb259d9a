package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnvVar = "CONFIG_PATH"

type Config interface {
	EnvConfig
	ClientConfig
	StoreConfig
	TokenConfig
	CorsConfig
	DevServerConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetPort() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// mainConfig is the document cleanenv fills from YAML and the environment.
type mainConfig struct {
	EnvVars   `yaml:",inline"`
	Client    `yaml:"client"`
	Store     `yaml:"store"`
	Tokens    `yaml:"tokens"`
	Cors      `yaml:"cors"`
	DevServer `yaml:"devserver"`
}

// New returns the configuration built from the environment only.
func New() Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. Sources, highest priority last:
//  1. defaults from the struct tags;
//  2. the YAML file at path, or at $CONFIG_PATH when path is empty;
//  3. environment variables.
func Load(path string) (Config, error) {
	var cfg mainConfig

	if path == "" {
		path = GetEnv(configPathEnvVar, "")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}
