// Command bravia-ctl controls a networked TV over its JSON-RPC API.
//
// Usage:
//
//	bravia-ctl [flags] <command> [args]
//
// Flags:
//
//	-config string        TOML configuration file
//	-host string          Device address or API URL (e.g. 192.168.1.20 or http://tv/sony)
//	-psk string           Pre-shared key configured on the device
//	-token string         Session token from an earlier pairing
//	-name string          Client name shown on the device when pairing (default "bravia-go")
//	-mac string           MAC address for wake-on-LAN
//	-state-file string    YAML file remembering discovered and paired devices
//	-reset                Clear the state file before starting
//	-protocol-log string  Append protocol events to this CBOR file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-timeout duration     Per-request timeout (default 10s)
//	-rate float           Max requests per second, 0 for unlimited
//	-output string        Result format: json or text (default "json")
//	-interactive          Start an interactive shell
//	-version              Print the client version and exit
//
// Commands:
//
//	discover                                   - Browse the network for devices
//	devices                                    - List remembered devices
//	forget <host>                              - Forget a remembered device
//	pair [pin]                                 - Pair with the device using a PIN
//	versions <endpoint>                        - List API versions of an endpoint
//	describe <endpoint> [version]              - List the methods of an endpoint
//	describe-all                               - List the methods of every endpoint
//	invoke <endpoint> <method> [version] [json] - Call a method
//	ircc <code>                                - Send a remote-control code
//	status                                     - Show connection status
//
// Examples:
//
//	# Find devices and remember them
//	bravia-ctl discover
//
//	# Pair: the first call shows a PIN on screen, the second completes it
//	bravia-ctl -host 192.168.1.20 pair
//	bravia-ctl -host 192.168.1.20 pair 1234
//
//	# Read the power status, waking the set if needed
//	bravia-ctl -host 192.168.1.20 -mac 00:11:22:33:44:55 invoke system getPowerStatus
//
//	# Change the volume with a 1.2 method
//	bravia-ctl -host 192.168.1.20 -psk 0000 invoke audio setAudioVolume 1.2 '{"target":"speaker","volume":"20"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/version"
)

// Config holds the command configuration.
type Config struct {
	ConfigFile  string
	Host        string
	PSK         string
	Token       string
	Name        string
	MAC         string
	LogLevel    string
	ProtocolLog string
	Timeout     time.Duration
	Rate        float64
	Output      string
	Interactive bool
	Version     bool

	// Persistence settings
	StateFile string
	Reset     bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Name:      "bravia-go",
		LogLevel:  "info",
		Timeout:   10 * time.Second,
		Output:    outputJSON,
		StateFile: defaultStateFile(),
	}
}

var config = DefaultConfig()

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "TOML configuration file")
	flag.StringVar(&config.Host, "host", config.Host, "Device address or API URL")
	flag.StringVar(&config.PSK, "psk", config.PSK, "Pre-shared key configured on the device")
	flag.StringVar(&config.Token, "token", config.Token, "Session token from an earlier pairing")
	flag.StringVar(&config.Name, "name", config.Name, "Client name shown on the device when pairing")
	flag.StringVar(&config.MAC, "mac", config.MAC, "MAC address for wake-on-LAN")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&config.ProtocolLog, "protocol-log", config.ProtocolLog, "Append protocol events to this CBOR file")
	flag.DurationVar(&config.Timeout, "timeout", config.Timeout, "Per-request timeout")
	flag.Float64Var(&config.Rate, "rate", config.Rate, "Max requests per second, 0 for unlimited")
	flag.StringVar(&config.Output, "output", config.Output, "Result format: json or text")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start an interactive shell")
	flag.BoolVar(&config.Version, "version", false, "Print the client version and exit")

	flag.StringVar(&config.StateFile, "state-file", config.StateFile, "YAML file remembering discovered and paired devices")
	flag.BoolVar(&config.Reset, "reset", false, "Clear the state file before starting")
}

func main() {
	flag.Parse()

	if config.Version {
		fmt.Println(version.UserAgent())
		return
	}

	if config.ConfigFile != "" {
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := loadConfigFile(config.ConfigFile, &config, set); err != nil {
			fatal(err)
		}
	}

	level, err := parseLevel(config.LogLevel)
	if err != nil {
		fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var plog log.Logger
	if config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			fatal(fmt.Errorf("open protocol log: %w", err))
		}
		defer fl.Close()
		plog = fl
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(&config, os.Stdout, logger, plog)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if config.Interactive {
		if err := RunShell(ctx, app); err != nil {
			fatal(err)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fatal(err)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bravia-go", "state.yaml")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "bravia-ctl: %v\n", err)
	os.Exit(1)
}
