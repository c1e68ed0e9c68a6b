package solver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func TestLoadConfig(t *testing.T) {
	file := writeConfig(t, `
solver:
  url: http://solver:8000
  api_key: topsecret
  max_nr_exec_orders: 42
  default_fee: 0.001
simulator:
  url: http://simulator:8080
  network_id: "5"
  rate_limit: 2.5
`)
	config, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, "http://solver:8000", config.Solver.URL)
	require.Equal(t, "topsecret", config.Solver.APIKey)
	require.Equal(t, uint32(42), config.Solver.MaxNrExecOrders)
	require.Equal(t, 0.001, config.Solver.DefaultFee)
	require.Equal(t, "http://simulator:8080", config.Simulator.URL)
	require.Equal(t, "5", config.Simulator.NetworkID)
	require.Equal(t, 2.5, config.Simulator.RateLimit)
}

func TestLoadConfigDefaults(t *testing.T) {
	file := writeConfig(t, `
solver:
  url: http://solver:8000
simulator:
  url: http://simulator:8080
`)
	config, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, uint32(100), config.Solver.MaxNrExecOrders)
	require.Equal(t, 0.0, config.Solver.DefaultFee)
	require.Equal(t, "1", config.Simulator.NetworkID)
	require.Equal(t, 10.0, config.Simulator.RateLimit)
}

func TestLoadConfigMissingEndpoints(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `simulator: {url: http://simulator:8080}`))
	require.ErrorIs(t, err, ErrMissingSolverURL)

	_, err = LoadConfig(writeConfig(t, `solver: {url: http://solver:8000}`))
	require.ErrorIs(t, err, ErrMissingSimulatorURL)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
