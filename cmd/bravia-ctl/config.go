package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Host        string  `toml:"host"`
	PSK         string  `toml:"psk"`
	Token       string  `toml:"token"`
	Name        string  `toml:"name"`
	MAC         string  `toml:"mac"`
	LogLevel    string  `toml:"log_level"`
	ProtocolLog string  `toml:"protocol_log"`
	StateFile   string  `toml:"state_file"`
	Timeout     string  `toml:"timeout"`
	Rate        float64 `toml:"rate"`
	Output      string  `toml:"output"`
}

// loadConfigFile applies the keys defined in the TOML file at path to cfg.
// Keys whose flag was set on the command line are left alone.
func loadConfigFile(path string, cfg *Config, flagsSet map[string]bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	apply := func(key, flagName string) bool {
		return meta.IsDefined(key) && !flagsSet[flagName]
	}

	if apply("host", "host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if apply("psk", "psk") {
		cfg.PSK = strings.TrimSpace(raw.PSK)
	}
	if apply("token", "token") {
		cfg.Token = strings.TrimSpace(raw.Token)
	}
	if apply("name", "name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if apply("mac", "mac") {
		cfg.MAC = strings.TrimSpace(raw.MAC)
	}
	if apply("log_level", "log-level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if apply("protocol_log", "protocol-log") {
		cfg.ProtocolLog = strings.TrimSpace(raw.ProtocolLog)
	}
	if apply("state_file", "state-file") {
		cfg.StateFile = strings.TrimSpace(raw.StateFile)
	}
	if apply("timeout", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if apply("output", "output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(raw.Output))
	}
	if apply("rate", "rate") {
		if raw.Rate < 0 {
			return errors.New("parse rate: must not be negative")
		}
		cfg.Rate = raw.Rate
	}
	return nil
}
