package service

import (
	"fmt"
	"os"
	"time"

	"github.com/kwv/coordenv/coordenv"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration file.
type Config struct {
	Finder coordenv.Options `yaml:"finder" json:"finder"`
	Batch  BatchConfig      `yaml:"batch" json:"batch"`
	MQTT   MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	HTTP   HTTPConfig       `yaml:"http" json:"http"`
}

// BatchConfig bounds one batch of site queries.
type BatchConfig struct {
	Workers int           `yaml:"workers" json:"workers"`
	Budget  time.Duration `yaml:"budget" json:"budget"` // e.g. "30s"; 0 disables the budget
}

// MQTTConfig holds MQTT connection settings. Empty Broker disables MQTT.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"password"`
	QueryTopic    string `yaml:"queryTopic" json:"queryTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
}

// HTTPConfig holds the HTTP server settings.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// DefaultConfig returns a configuration usable without a file.
func DefaultConfig() *Config {
	return &Config{
		Finder: coordenv.DefaultOptions(),
		Batch:  BatchConfig{Workers: 4},
		MQTT: MQTTConfig{
			ClientID:      "coordenv",
			QueryTopic:    "coordenv/query",
			PublishPrefix: "coordenv",
		},
		HTTP: HTTPConfig{Port: 8080},
	}
}

// LoadConfig loads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Finder.Centering {
	case coordenv.CenteringStandard, coordenv.CenteringCentralSite, coordenv.CenteringCentroid:
	default:
		return fmt.Errorf("finder.centering must be standard, central_site or centroid, got %q", c.Finder.Centering)
	}
	if c.Finder.Centering == coordenv.CenteringCentralSite && c.Finder.IncludeCentralSiteInCentroid {
		return fmt.Errorf("finder.includeCentralSiteInCentroid cannot be used with central_site centering")
	}
	if c.Finder.Optimization < 0 {
		return fmt.Errorf("finder.optimization must not be negative")
	}
	if c.Finder.MaxHintDepth < 0 {
		return fmt.Errorf("finder.maxHintDepth must not be negative")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}
	if c.Batch.Budget < 0 {
		return fmt.Errorf("batch.budget must not be negative")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
