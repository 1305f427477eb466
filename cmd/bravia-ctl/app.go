package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/device"
	"github.com/bravia-rpc/bravia-go/pkg/discovery"
	"github.com/bravia-rpc/bravia-go/pkg/inspect"
	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/persistence"
	"github.com/bravia-rpc/bravia-go/pkg/service"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
	"github.com/bravia-rpc/bravia-go/pkg/version"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

var (
	errUsage  = errors.New("usage")
	errNoHost = errors.New("no device: use -host or run discover")

	errUnknownCommand = fmt.Errorf("%w: unknown command", errUsage)
)

// Result output formats.
const (
	outputJSON = "json"
	outputText = "text"
)

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// App runs commands against one device and the state file.
type App struct {
	cfg    *Config
	out    io.Writer
	logger *slog.Logger
	plog   log.Logger

	sessionID string
	store     *persistence.StateStore
	creds     *credentials.Mutable
	dev       *device.Device
	base      string
	formatter *inspect.Formatter

	// newBrowser creates the browser used by discover.
	newBrowser func() discovery.Browser
}

// NewApp opens the state file and, when a host is configured, creates the
// device client. No request is sent.
func NewApp(cfg *Config, out io.Writer, logger *slog.Logger, plog log.Logger) (*App, error) {
	switch cfg.Output {
	case "", outputJSON, outputText:
	default:
		return nil, fmt.Errorf("unknown output format: %s (use: json, text)", cfg.Output)
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:       cfg,
		out:       out,
		logger:    logger,
		plog:      plog,
		sessionID: log.NewSessionID(),
		creds:     credentials.NewMutable(nil),
		formatter: inspect.NewFormatter(),
	}
	a.newBrowser = func() discovery.Browser {
		b := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
		b.SetLogger(a.logger)
		return b
	}

	if cfg.StateFile != "" {
		a.store = persistence.NewStateStore(cfg.StateFile)
		if cfg.Reset {
			if err := a.store.Clear(); err != nil {
				return nil, fmt.Errorf("reset state: %w", err)
			}
		}
	}

	if cfg.Host == "" {
		return a, nil
	}
	a.base = baseURL(cfg.Host)

	rec, err := a.record()
	if err != nil {
		return nil, err
	}
	a.creds.Set(pickCredentials(cfg, rec))

	tcfg := transport.DefaultConfig()
	tcfg.Timeout = cfg.Timeout
	tcfg.RateLimit = cfg.Rate
	tcfg.Logger = logger
	tcfg.ProtocolLogger = plog
	tcfg.SessionID = a.sessionID
	inv := transport.NewInvoker(transport.NewHTTPPoster(&http.Client{}), tcfg)

	dcfg := device.DefaultConfig()
	dcfg.BaseURL = a.base
	dcfg.Sender = inv
	dcfg.Credentials = a.creds
	dcfg.Logger = logger
	dcfg.ProtocolLogger = plog
	dcfg.SessionID = a.sessionID
	if cfg.MAC != "" {
		w, err := newWOLWaker(cfg.MAC, "")
		if err != nil {
			return nil, err
		}
		dcfg.Waker = w
	}
	a.dev, err = device.New(dcfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the device client.
func (a *App) Close() {
	if a.dev != nil {
		a.dev.Close()
	}
}

// baseURL turns a host or URL into the API root.
func baseURL(host string) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "http://" + strings.TrimRight(host, "/") + discovery.APIPath
}

// pickCredentials applies flags before the remembered record.
func pickCredentials(cfg *Config, rec *persistence.DeviceRecord) *credentials.Credentials {
	switch {
	case cfg.PSK != "":
		return credentials.FromPSK(cfg.PSK)
	case cfg.Token != "":
		return credentials.FromSession(&credentials.Session{Name: cfg.Name, Token: cfg.Token})
	}
	return rec.Credentials()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("missing command")
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "discover":
		return a.cmdDiscover(ctx)
	case "devices", "list", "ls":
		return a.cmdDevices()
	case "forget":
		return a.cmdForget(args)
	case "pair":
		return a.cmdPair(ctx, args)
	case "versions":
		return a.cmdVersions(ctx, args)
	case "describe":
		return a.cmdDescribe(ctx, args)
	case "describe-all":
		return a.cmdDescribeAll(ctx)
	case "invoke", "call":
		return a.cmdInvoke(ctx, args)
	case "ircc":
		return a.cmdIRCC(ctx, args)
	case "status":
		return a.cmdStatus()
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}

func (a *App) record() (*persistence.DeviceRecord, error) {
	if a.store == nil || a.base == "" {
		return nil, nil
	}
	st, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st.Lookup(a.base), nil
}

// updateRecord applies fn to the record of the current device, creating it.
func (a *App) updateRecord(fn func(*persistence.DeviceRecord)) error {
	if a.store == nil {
		return nil
	}
	return a.store.Update(func(st *persistence.State) error {
		rec := persistence.DeviceRecord{Host: a.base}
		if existing := st.Lookup(a.base); existing != nil {
			rec = *existing
		}
		fn(&rec)
		st.Upsert(rec)
		return nil
	})
}

func (a *App) requireDevice() error {
	if a.dev == nil {
		return errNoHost
	}
	return nil
}

func (a *App) cmdDiscover(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	b := a.newBrowser()
	defer b.Stop()

	fmt.Fprintln(a.out, "Browsing for devices...")
	found, err := discovery.FindAll(ctx, b)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if len(found) == 0 {
		fmt.Fprintln(a.out, "No devices found")
		return nil
	}

	fmt.Fprintf(a.out, "Found %d device(s):\n", len(found))
	for i, svc := range found {
		fmt.Fprintf(a.out, "  %d. %s (%s) %s\n", i+1, svc.DisplayName(), svc.Model, svc.BaseURL())
	}

	if a.store == nil {
		return nil
	}
	now := time.Now()
	return a.store.Update(func(st *persistence.State) error {
		for _, svc := range found {
			rec := persistence.DeviceRecord{Host: svc.BaseURL()}
			if existing := st.Lookup(rec.Host); existing != nil {
				rec = *existing
			}
			rec.Name = svc.DisplayName()
			rec.LastSeenAt = now
			st.Upsert(rec)
		}
		return nil
	})
}

func (a *App) cmdDevices() error {
	if a.store == nil {
		return errors.New("no state file configured")
	}
	st, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if st == nil || len(st.Devices) == 0 {
		fmt.Fprintln(a.out, "No remembered devices")
		return nil
	}
	for _, rec := range st.Devices {
		auth := "none"
		switch {
		case rec.PSK != "":
			auth = "psk"
		case rec.Session != nil && rec.Session.Token != "":
			auth = "paired"
		}
		fmt.Fprintf(a.out, "  %s  %s  auth=%s", rec.Host, rec.Name, auth)
		if !rec.LastSeenAt.IsZero() {
			fmt.Fprintf(a.out, "  seen=%s", rec.LastSeenAt.Format(time.RFC3339))
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *App) cmdForget(args []string) error {
	if len(args) != 1 {
		return usage("forget <host>")
	}
	if a.store == nil {
		return errors.New("no state file configured")
	}
	host := baseURL(args[0])
	var removed bool
	if err := a.store.Update(func(st *persistence.State) error {
		removed = st.Remove(host)
		return nil
	}); err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("unknown device: %s", host)
	}
	fmt.Fprintf(a.out, "Forgot %s\n", host)
	return nil
}

func (a *App) cmdPair(ctx context.Context, args []string) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	if len(args) > 1 {
		return usage("pair [pin]")
	}
	var pin string
	if len(args) == 1 {
		pin = args[0]
	}

	// The set only accepts the PIN for the client id it was shown for, so
	// the session is kept between the two steps.
	rec, err := a.record()
	if err != nil {
		return err
	}
	session := credentials.NewSession(a.cfg.Name)
	if rec != nil && rec.Session != nil && rec.Session.UUID != "" {
		session = rec.Session
	}

	paired, err := a.dev.Pairer().Token(ctx, pin, session)
	if errors.Is(err, device.ErrPINRequired) && pin == "" {
		if err := a.updateRecord(func(r *persistence.DeviceRecord) { r.Session = session }); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Enter the PIN shown on the screen: pair <pin>")
		return nil
	}
	if err != nil {
		return fmt.Errorf("pair: %w", err)
	}

	a.creds.Set(credentials.FromSession(paired))
	if err := a.updateRecord(func(r *persistence.DeviceRecord) {
		r.Session = paired
		r.LastSeenAt = time.Now()
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Paired as %s\n", paired.Name)
	if !paired.Expires.IsZero() {
		fmt.Fprintf(a.out, "Token expires %s\n", paired.Expires.Format(time.RFC3339))
	}
	return nil
}

func (a *App) cmdVersions(ctx context.Context, args []string) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("versions <endpoint>")
	}
	p, err := a.dev.Service(args[0])
	if err != nil {
		return err
	}
	groups, err := p.GetVersions(ctx)
	if err != nil {
		return err
	}
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	for _, v := range version.Sort(all) {
		fmt.Fprintln(a.out, v)
	}
	return nil
}

func (a *App) cmdDescribe(ctx context.Context, args []string) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return usage("describe <endpoint> [version]")
	}
	var v string
	if len(args) == 2 {
		if _, err := version.Parse(args[1]); err != nil {
			return usage("%v", err)
		}
		v = args[1]
	}
	p, err := a.dev.Service(args[0])
	if err != nil {
		return err
	}
	desc, err := p.Describe(ctx, v)
	if err != nil {
		return err
	}
	a.printDescription(desc)
	return nil
}

func (a *App) cmdDescribeAll(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	descs, err := a.dev.DescribeAll(ctx)
	for _, desc := range descs {
		a.printDescription(desc)
	}
	if err != nil && len(descs) == 0 {
		return err
	}
	if err != nil {
		a.logger.Warn("some endpoints could not be described", "error", err)
	}
	return nil
}

func (a *App) printDescription(desc *service.Description) {
	fmt.Fprint(a.out, a.formatter.FormatDescription(desc))
}

func (a *App) cmdInvoke(ctx context.Context, args []string) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	if len(args) < 2 || len(args) > 4 {
		return usage("invoke <endpoint> <method> [version] [json-params]")
	}
	endpoint, method, rest := args[0], args[1], args[2:]

	var ver string
	if len(rest) > 0 && !looksLikeJSON(rest[0]) {
		if _, err := version.Parse(rest[0]); err != nil {
			return usage("%v", err)
		}
		ver, rest = rest[0], rest[1:]
	}
	var params any
	if len(rest) > 0 {
		if err := json.Unmarshal([]byte(rest[0]), &params); err != nil {
			return usage("params: %v", err)
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return usage("invoke <endpoint> <method> [version] [json-params]")
	}

	res, err := a.dev.InvokeAwake(ctx, endpoint, method, ver, params)
	if err != nil {
		return err
	}
	if res.PowerOff {
		fmt.Fprintln(a.out, "Device display is off")
		return nil
	}
	if a.cfg.Output == outputText {
		fmt.Fprintln(a.out, a.formatter.FormatValue(res.Value()))
		return nil
	}
	return a.printJSON(res.Value())
}

func looksLikeJSON(s string) bool {
	return wire.LooksLikeJSON([]byte(s))
}

func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}

func (a *App) cmdIRCC(ctx context.Context, args []string) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("ircc <code>")
	}
	if err := a.dev.SendIRCC(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}

func (a *App) cmdStatus() error {
	if a.dev == nil {
		fmt.Fprintln(a.out, "Device:  (none)")
	} else {
		fmt.Fprintf(a.out, "Device:  %s\n", a.dev.BaseURL())
		fmt.Fprintf(a.out, "Power:   %s\n", a.dev.PowerState())
		fmt.Fprintf(a.out, "Breaker: %s\n", a.dev.BreakerState())
		c := a.creds.Credentials()
		switch {
		case c == nil || !c.HasAuth():
			fmt.Fprintln(a.out, "Auth:    none")
		case c.PSK != "":
			fmt.Fprintln(a.out, "Auth:    psk")
		default:
			fmt.Fprint(a.out, "Auth:    paired")
			if !c.Session.Expires.IsZero() {
				fmt.Fprintf(a.out, " (expires %s)", c.Session.Expires.Format(time.RFC3339))
			}
			fmt.Fprintln(a.out)
		}
	}
	if a.store != nil {
		fmt.Fprintf(a.out, "State:   %s\n", a.store.Path())
	}
	fmt.Fprintf(a.out, "Session: %s\n", a.sessionID)
	fmt.Fprintf(a.out, "Client:  %s\n", version.UserAgent())
	return nil
}
