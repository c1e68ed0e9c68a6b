package solver

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSolverURL    = errors.New("solver url is required")
	ErrMissingSimulatorURL = errors.New("simulator url is required")
)

// Config is the file-based part of the node configuration: the external
// solver and simulator endpoints and the solver tuning parameters. Endpoint
// secrets live here rather than in flags so they stay out of process lists.
type Config struct {
	Solver struct {
		URL             string  `yaml:"url"`
		APIKey          string  `yaml:"api_key"`
		MaxNrExecOrders uint32  `yaml:"max_nr_exec_orders"`
		DefaultFee      float64 `yaml:"default_fee"`
	} `yaml:"solver"`
	Simulator struct {
		URL       string  `yaml:"url"`
		APIKey    string  `yaml:"api_key"`
		NetworkID string  `yaml:"network_id"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"simulator"`
}

// LoadConfig parses the node config from a yaml file.
func LoadConfig(file string) (Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if config.Solver.URL == "" {
		return Config{}, ErrMissingSolverURL
	}
	if config.Simulator.URL == "" {
		return Config{}, ErrMissingSimulatorURL
	}
	if config.Solver.MaxNrExecOrders == 0 {
		config.Solver.MaxNrExecOrders = 100
	}
	if config.Simulator.NetworkID == "" {
		config.Simulator.NetworkID = "1"
	}
	if config.Simulator.RateLimit == 0 {
		config.Simulator.RateLimit = 10
	}
	return config, nil
}
