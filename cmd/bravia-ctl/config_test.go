package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bravia.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
host = " 192.168.1.20 "
psk = "0000"
name = "living-room"
mac = "00:11:22:33:44:55"
log_level = "debug"
protocol_log = "/tmp/bravia.cbor"
state_file = "/tmp/state.yaml"
timeout = "3s"
rate = 2.5
output = " TEXT "
`)
	cfg := DefaultConfig()
	require.NoError(t, loadConfigFile(path, &cfg, nil))

	assert.Equal(t, "192.168.1.20", cfg.Host)
	assert.Equal(t, "0000", cfg.PSK)
	assert.Equal(t, "living-room", cfg.Name)
	assert.Equal(t, "00:11:22:33:44:55", cfg.MAC)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/bravia.cbor", cfg.ProtocolLog)
	assert.Equal(t, "/tmp/state.yaml", cfg.StateFile)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 2.5, cfg.Rate)
	assert.Equal(t, outputText, cfg.Output)
}

func TestLoadConfigFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `host = "tv.local"`)
	cfg := DefaultConfig()
	require.NoError(t, loadConfigFile(path, &cfg, nil))

	def := DefaultConfig()
	assert.Equal(t, "tv.local", cfg.Host)
	assert.Equal(t, def.Name, cfg.Name)
	assert.Equal(t, def.Timeout, cfg.Timeout)
	assert.Equal(t, def.StateFile, cfg.StateFile)
}

func TestLoadConfigFileFlagsWin(t *testing.T) {
	path := writeConfig(t, `
host = "from-file"
log_level = "debug"
timeout = "1s"
`)
	cfg := DefaultConfig()
	cfg.Host = "from-flag"
	require.NoError(t, loadConfigFile(path, &cfg, map[string]bool{"host": true, "timeout": true}))

	assert.Equal(t, "from-flag", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadConfigFileErrors(t *testing.T) {
	cfg := DefaultConfig()

	err := loadConfigFile(filepath.Join(t.TempDir(), "missing.toml"), &cfg, nil)
	assert.Error(t, err)

	err = loadConfigFile(writeConfig(t, `timeout = "soon"`), &cfg, nil)
	assert.ErrorContains(t, err, "parse timeout")

	err = loadConfigFile(writeConfig(t, `rate = -1.0`), &cfg, nil)
	assert.ErrorContains(t, err, "parse rate")

	err = loadConfigFile(writeConfig(t, `hots = "typo"`), &cfg, nil)
	assert.ErrorContains(t, err, `unknown key "hots"`)

	err = loadConfigFile(writeConfig(t, `host = `), &cfg, nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
		_, err := parseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}
