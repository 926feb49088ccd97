package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swagdesk/swagdesk/pkg/memcache"
	"github.com/swagdesk/swagdesk/pkg/optimizer"
)

// Config holds all swagdesk configuration.
type Config struct {
	DBPath  string           `yaml:"db_path"`
	Cache   memcache.Config  `yaml:"cache"`
	Query   optimizer.Config `yaml:"query"`
	Swagger SwaggerConfig    `yaml:"swagger"`
}

// SwaggerConfig controls the swagger document cache.
type SwaggerConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "swagdesk.db",
		Cache: memcache.Config{
			MaxSize:           1000,
			MaxMemoryBytes:    64 << 20,
			HotWindowSize:     1000,
			HotThresholdRatio: 0.1,
		},
		Query: optimizer.Config{
			SlowQueryThreshold: 100 * time.Millisecond,
			CacheSize:          1000,
			CacheTTL:           5 * time.Minute,
		},
		Swagger: SwaggerConfig{
			Expiry: 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
