package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/pelletier/go-toml"
)

var log = logger.GetOrCreate("config")

// LoadConfig opens and decodes a toml configuration file, applying defaults
// and validating the result
func LoadConfig(relativePath string) (*Config, error) {
	cfg := &Config{}
	err := loadTomlFile(cfg, relativePath)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	err = validate(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTomlFile(dest interface{}, relativePath string) error {
	path, err := filepath.Abs(relativePath)
	if err != nil {
		return fmt.Errorf("cannot create absolute path for %s: %w", relativePath, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		errClose := f.Close()
		if errClose != nil {
			log.Warn("cannot close config file", "path", path, "error", errClose.Error())
		}
	}()

	return toml.NewDecoder(f).Decode(dest)
}

func applyDefaults(cfg *Config) {
	if cfg.Execution.NumWorkers == 0 {
		cfg.Execution.NumWorkers = runtime.NumCPU()
	}
}

func validate(cfg *Config) error {
	if cfg.Execution.NumWorkers < 0 {
		return ErrInvalidNumWorkers
	}
	if cfg.Execution.StorageCacheCapacity < 0 {
		return ErrInvalidStorageCacheCapacity
	}

	return nil
}
