package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "SECTORFS"

// Config carries the tool's defaults. Values load from an optional yaml
// file first, then environment variables overlay.
type Config struct {
	Image    string `envconfig:"SECTORFS_IMAGE"     yaml:"image"`
	Sectors  uint32 `envconfig:"SECTORFS_SECTORS"   yaml:"sectors"`
	LogLevel string `envconfig:"SECTORFS_LOG_LEVEL" yaml:"logLevel"`
}

func LoadConfig() (*Config, error) {
	config := Config{Image: "disk.img", Sectors: 16384, LogLevel: "info"}

	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file `%s`: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing config file `%s`: %w", configFile, err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &config); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	return &config, nil
}
