package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/bravia-rpc/bravia-go/pkg/connection"
	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/service"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Device errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrCircuitOpen   = errors.New("device unavailable")
)

// IRCCEndpoint is the legacy remote-control channel.
const IRCCEndpoint = "IRCC"

// DefaultEndpoints lists the service endpoints a set usually exposes.
var DefaultEndpoints = []string{
	"guide",
	"accessControl",
	"appControl",
	"audio",
	"avContent",
	"browser",
	"cec",
	"contentshare",
	"encryption",
	"recording",
	"system",
	"video",
	"videoScreen",
}

// Waker wakes a sleeping set, e.g. by sending a wake-on-LAN packet.
type Waker interface {
	Wake(ctx context.Context) error
}

// WakerFunc adapts a function to Waker.
type WakerFunc func(ctx context.Context) error

// Wake implements Waker.
func (f WakerFunc) Wake(ctx context.Context) error {
	return f(ctx)
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive network failures before the
	// circuit opens (default: 5).
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a probe (default: 30s).
	Timeout time.Duration

	// Interval clears the failure counts while closed (default: 60s).
	Interval time.Duration
}

// Config configures a Device.
type Config struct {
	// BaseURL is the device API root, e.g. "http://192.168.1.20/sony".
	BaseURL string

	// Sender performs the round trips, usually a *transport.Invoker.
	Sender service.Sender

	// Credentials supplies authentication. Nil sends none.
	Credentials credentials.Source

	// Waker wakes the set for InvokeAwake. Nil disables waking.
	Waker Waker

	// Wake configures the wake retry sequence.
	Wake connection.ManagerConfig

	// Breaker configures the circuit breaker.
	Breaker BreakerConfig

	// Endpoints lists the endpoints DescribeAll visits (default: DefaultEndpoints).
	Endpoints []string

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives state events. Nil disables capture.
	ProtocolLogger log.Logger

	// SessionID tags protocol events.
	SessionID string
}

// DefaultConfig returns a configuration with default wake and breaker settings.
func DefaultConfig() Config {
	return Config{
		Wake: connection.DefaultManagerConfig(),
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
		Endpoints: DefaultEndpoints,
	}
}

// Device is a client for all endpoints of one set. It is safe for
// concurrent use.
type Device struct {
	cfg     Config
	logger  *slog.Logger
	plog    log.Logger
	breaker *gobreaker.CircuitBreaker[*transport.Result]
	power   *connection.Manager

	mu       sync.Mutex
	services map[string]*service.Protocol
}

// New creates a Device. No request is sent.
func New(cfg Config) (*Device, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = 60 * time.Second
	}

	d := &Device{
		cfg:      cfg,
		logger:   cfg.Logger.With("device", cfg.BaseURL),
		plog:     log.OrNoop(cfg.ProtocolLogger),
		services: make(map[string]*service.Protocol),
	}

	var wake connection.WakeFunc
	if cfg.Waker != nil {
		wake = cfg.Waker.Wake
	}
	d.power = connection.NewManager(wake, cfg.Wake)
	d.power.OnStateChange(func(from, to connection.State) {
		d.emitState(log.StateEntityPower, from.String(), to.String())
	})
	d.power.OnWaking(func(attempt int, delay time.Duration) {
		d.logger.Info("waiting for device to wake", "attempt", attempt, "delay", delay)
	})

	maxFailures := cfg.Breaker.MaxFailures
	d.breaker = gobreaker.NewCircuitBreaker[*transport.Result](gobreaker.Settings{
		Name:        "device:" + cfg.BaseURL,
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			d.emitState(log.StateEntityBreaker, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !transport.IsNetwork(err)
		},
	})
	return d, nil
}

// BaseURL returns the device API root.
func (d *Device) BaseURL() string {
	return d.cfg.BaseURL
}

// Service returns the protocol client of an endpoint, creating it on first use.
func (d *Device) Service(name string) (*service.Protocol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.services[name]; ok {
		return p, nil
	}
	p, err := service.New(service.Config{
		BaseURL:        d.cfg.BaseURL,
		Endpoint:       name,
		Sender:         d.cfg.Sender,
		Credentials:    d.cfg.Credentials,
		Logger:         d.cfg.Logger,
		ProtocolLogger: d.cfg.ProtocolLogger,
		SessionID:      d.cfg.SessionID,
	})
	if err != nil {
		return nil, err
	}
	d.services[name] = p
	return p, nil
}

// Invoke calls method on endpoint through the circuit breaker.
func (d *Device) Invoke(ctx context.Context, endpoint, method, version string, params any) (*transport.Result, error) {
	return d.invokeWithHeaders(ctx, endpoint, method, version, params, nil)
}

func (d *Device) invokeWithHeaders(ctx context.Context, endpoint, method, version string, params any, headers http.Header) (*transport.Result, error) {
	p, err := d.Service(endpoint)
	if err != nil {
		return nil, err
	}
	return d.execute(func() (*transport.Result, error) {
		return p.Invoke(ctx, method, version, params, headers)
	})
}

// InvokeAwake is Invoke with wake-and-retry. If the set reports its display
// off, is unreachable, or is asleep while its catalog is discovered, and a
// Waker is configured, it is woken and the call retried with backoff. When
// the set never wakes, the last power-off result is returned without error,
// or the last failure wrapped with connection.ErrWakeFailed when there was
// none. Device errors are returned as they are, never retried.
func (d *Device) InvokeAwake(ctx context.Context, endpoint, method, version string, params any) (*transport.Result, error) {
	res, err := d.Invoke(ctx, endpoint, method, version, params)
	switch {
	case err == nil && !res.PowerOff:
		d.power.MarkAwake()
		return res, nil
	case err == nil:
		d.power.MarkAsleep()
		if !d.power.CanWake() {
			return res, nil
		}
	case errors.Is(err, service.ErrPoweredOff):
		d.power.MarkAsleep()
		if !d.power.CanWake() {
			return nil, err
		}
		res = nil
	case unreachable(err) && d.power.CanWake():
		res = nil
	default:
		return nil, err
	}

	d.logger.Info("device is asleep, waking", "endpoint", endpoint, "method", method, "error", err)
	lastErr := err
	werr := d.power.Wake(ctx, func(ctx context.Context) (bool, error) {
		r, err := d.Invoke(ctx, endpoint, method, version, params)
		if err != nil {
			if unreachable(err) || errors.Is(err, service.ErrPoweredOff) {
				lastErr = err
				return false, nil
			}
			return false, err
		}
		res = r
		return !r.PowerOff, nil
	})
	switch {
	case errors.Is(werr, connection.ErrWakeFailed):
		d.logger.Warn("device did not wake", "error", werr)
		if res != nil {
			return res, nil
		}
		return nil, fmt.Errorf("%w: %w", werr, lastErr)
	case werr != nil:
		return nil, werr
	}

	// A caller that joined another caller's wake sequence holds no awake
	// answer of its own.
	if res == nil || res.PowerOff {
		return d.Invoke(ctx, endpoint, method, version, params)
	}
	return res, nil
}

// unreachable reports whether err means the set did not answer at all.
func unreachable(err error) bool {
	return transport.IsNetwork(err) || errors.Is(err, ErrCircuitOpen)
}

// SendIRCC sends one remote-control code over the legacy channel.
func (d *Device) SendIRCC(ctx context.Context, code string) error {
	var creds *credentials.Credentials
	if d.cfg.Credentials != nil {
		creds = d.cfg.Credentials.Credentials()
	}
	url := service.EndpointURL(d.cfg.BaseURL, IRCCEndpoint)
	_, err := d.execute(func() (*transport.Result, error) {
		return d.cfg.Sender.Send(ctx, url, creds, transport.Text(wire.IRCCEnvelope(code)), nil)
	})
	return err
}

// DescribeAll describes every configured endpoint, skipping endpoints with
// no methods. A network failure aborts; other per-endpoint failures are
// joined into the returned error alongside the descriptions that succeeded.
func (d *Device) DescribeAll(ctx context.Context) ([]*service.Description, error) {
	var out []*service.Description
	var errs []error
	for _, ep := range d.cfg.Endpoints {
		p, err := d.Service(ep)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		desc, err := p.Describe(ctx, "")
		if err != nil {
			if transport.IsNetwork(err) || ctx.Err() != nil {
				return out, err
			}
			d.logger.Debug("describe failed", "endpoint", ep, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ep, err))
			continue
		}
		if len(desc.Methods) == 0 {
			continue
		}
		out = append(out, desc)
	}
	return out, errors.Join(errs...)
}

// PowerState returns the last observed power state.
func (d *Device) PowerState() connection.State {
	return d.power.State()
}

// BreakerState returns the circuit breaker state.
func (d *Device) BreakerState() gobreaker.State {
	return d.breaker.State()
}

// Close stops wake sequences. In-flight calls are not interrupted.
func (d *Device) Close() {
	d.power.Close()
}

func (d *Device) execute(fn func() (*transport.Result, error)) (*transport.Result, error) {
	res, err := d.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, d.cfg.BaseURL, err)
	}
	return res, err
}

func (d *Device) emitState(entity log.StateEntity, from, to string) {
	d.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: d.cfg.SessionID,
		Layer:     log.LayerDevice,
		Category:  log.CategoryState,
		URL:       d.cfg.BaseURL,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
		},
	})
}
