package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/baca2-project/judgekeeper/internal/broker"
)

// InstanceConfig describes one judge keeper instance: identity,
// network ports, judging directories and the worker fleet it expects.
type InstanceConfig struct {
	Version  int `yaml:"version"`
	Instance struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"instance"`
	Network struct {
		APIPort  int `yaml:"api_port"`
		MQTTPort int `yaml:"mqtt_port"`
		DBPort   int `yaml:"db_port"`
	} `yaml:"network"`
	Judging struct {
		PackagesDir   string `yaml:"packages_dir"`
		SubmitsDir    string `yaml:"submits_dir"`
		StuckAfterSec int    `yaml:"stuck_after_sec"`
	} `yaml:"judging"`
	Workers map[string]WorkerConfig `yaml:"workers"`
}

// WorkerConfig declares an expected judge worker.
type WorkerConfig struct {
	Kind         string   `yaml:"kind"`
	Required     bool     `yaml:"required"`
	Capabilities []string `yaml:"capabilities"`
}

// APIPort returns the configured API port, defaulting to 8080 if not
// set.
func (c *InstanceConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// StuckAfterSec returns the idle time after which a running session is
// considered stuck, defaulting to 600 seconds.
func (c *InstanceConfig) StuckAfterSec() int {
	if c.Judging.StuckAfterSec == 0 {
		return 600
	}
	return c.Judging.StuckAfterSec
}

// WorkerSpecs converts the configured worker fleet into validation
// specs for the broker layer.
func (c *InstanceConfig) WorkerSpecs() map[string]broker.WorkerSpec {
	specs := make(map[string]broker.WorkerSpec, len(c.Workers))
	for id, w := range c.Workers {
		specs[id] = broker.WorkerSpec{
			Kind:         w.Kind,
			Required:     w.Required,
			Capabilities: w.Capabilities,
		}
	}
	return specs
}

// LoadInstanceConfig reads and validates an instance.yaml file.
func LoadInstanceConfig(path string) (*InstanceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg InstanceConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported instance.yaml version: %d", cfg.Version)
	}
	if cfg.Instance.ID == "" {
		return nil, fmt.Errorf("instance.id is required")
	}

	return &cfg, nil
}
