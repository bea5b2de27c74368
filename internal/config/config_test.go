package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
app:
  name: testfarm
server:
  port: 9090
database:
  driver: sqlite
  database: farm.db
node:
  poll_interval: 5
  wire_port: 4000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "testfarm", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Node.PollDuration())
	assert.Equal(t, 4000, cfg.Node.WirePort)

	// Unset fields still get defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.Node.HeartbeatDuration())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("app: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "hydra", cfg.App.Name)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3621, cfg.Node.WirePort)
	assert.Equal(t, 5*time.Minute, cfg.Node.StaleDuration())
	assert.Equal(t, 2*time.Minute, cfg.Node.ReapDuration())
	assert.Greater(t, cfg.Node.PollDuration(), time.Duration(0))
}
