package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Introspection methods every endpoint answers at version 1.0.
const (
	MethodGetVersions    = "getVersions"
	MethodGetMethodTypes = "getMethodTypes"
)

// CallID is the id sent with every call.
const CallID = 1

// State is the discovery state of a Protocol.
type State uint8

const (
	// StateUninitialized - no catalog yet.
	StateUninitialized State = iota

	// StateDiscovering - a discovery is in flight.
	StateDiscovering

	// StateReady - the catalog is cached.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateDiscovering:
		return "DISCOVERING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Sender performs one round trip. *transport.Invoker implements it.
type Sender interface {
	Send(ctx context.Context, url string, creds *credentials.Credentials, payload transport.Payload, extra http.Header) (*transport.Result, error)
}

// EndpointURL joins a device base URL such as "http://192.168.1.20/sony"
// and an endpoint name.
func EndpointURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// Config configures a Protocol.
type Config struct {
	// BaseURL is the device API root, e.g. "http://192.168.1.20/sony".
	BaseURL string

	// Endpoint is the service name, e.g. "system" or "audio".
	Endpoint string

	// Sender performs the round trips.
	Sender Sender

	// Credentials supplies authentication for every call. Nil sends none.
	Credentials credentials.Source

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives catalog state events. Nil disables capture.
	ProtocolLogger log.Logger

	// SessionID tags protocol events.
	SessionID string
}

// Protocol is the client of one service endpoint. It is safe for concurrent
// use.
type Protocol struct {
	url       string
	endpoint  string
	sender    Sender
	creds     credentials.Source
	logger    *slog.Logger
	plog      log.Logger
	sessionID string

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	catalog *Catalog
	gen     uint64
}

// New creates a Protocol. No request is sent until the catalog is needed.
func New(config Config) (*Protocol, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if config.Sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidConfig)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Protocol{
		url:       EndpointURL(config.BaseURL, config.Endpoint),
		endpoint:  config.Endpoint,
		sender:    config.Sender,
		creds:     config.Credentials,
		logger:    config.Logger.With("endpoint", config.Endpoint),
		plog:      log.OrNoop(config.ProtocolLogger),
		sessionID: config.SessionID,
	}, nil
}

// URL returns the endpoint URL.
func (p *Protocol) URL() string {
	return p.url
}

// Endpoint returns the endpoint name.
func (p *Protocol) Endpoint() string {
	return p.endpoint
}

// State returns the discovery state.
func (p *Protocol) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Catalog returns the cached catalog, or nil before discovery completed.
func (p *Protocol) Catalog() *Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.catalog
}

// Reset drops the cached catalog. The next operation discovers again.
// A discovery in flight completes for its waiters but is not cached.
func (p *Protocol) Reset() {
	p.mu.Lock()
	old := p.state
	p.gen++
	p.catalog = nil
	p.state = StateUninitialized
	p.mu.Unlock()

	p.group.Forget(discoveryKey)
	p.emitState(old, StateUninitialized, "reset")
}

// GetVersions asks the endpoint which version groups it supports. It always
// hits the device and does not touch the cache.
func (p *Protocol) GetVersions(ctx context.Context) ([]VersionGroup, error) {
	res, err := p.send(ctx, MethodGetVersions, wire.DefaultVersion, nil, nil)
	if err != nil {
		return nil, err
	}
	if res.PowerOff {
		return nil, fmt.Errorf("%s %s: %w", p.endpoint, MethodGetVersions, ErrPoweredOff)
	}

	groups := make([]VersionGroup, 0, len(res.Result))
	for _, el := range res.Result {
		switch v := el.(type) {
		case string:
			groups = append(groups, VersionGroup{v})
		case []any:
			var g VersionGroup
			for _, s := range v {
				if str, ok := s.(string); ok {
					g = append(g, str)
				}
			}
			if len(g) > 0 {
				groups = append(groups, g)
			}
		default:
			p.logger.Debug("ignoring version element", "value", el)
		}
	}
	return groups, nil
}

// Describe returns the endpoint's methods, discovering them on first use.
// A non-empty version keeps only the entries advertised at that version.
func (p *Protocol) Describe(ctx context.Context, version string) (*Description, error) {
	cat, err := p.ensureCatalog(ctx)
	if err != nil {
		return nil, err
	}
	desc := &Description{Endpoint: p.endpoint}
	if version == "" {
		desc.Methods = cat.Methods()
	} else {
		desc.Methods = cat.Filter(version)
	}
	return desc, nil
}

// Invoke calls method on the endpoint. An empty version means "1.0". If the
// method is advertised but not at version, the latest advertised version is
// used. params may be nil, a list of positional values, or a single object.
// A method the endpoint does not advertise fails with *UnknownMethodError
// without any request.
//
// A set that reports its display off answers the call itself with a result
// whose PowerOff is true. If it does so while the catalog is still being
// discovered there is nothing to resolve the method against, so Invoke
// fails with ErrPoweredOff instead and the next call discovers again.
func (p *Protocol) Invoke(ctx context.Context, method, version string, params any, headers http.Header) (*transport.Result, error) {
	if version == "" {
		version = wire.DefaultVersion
	}
	cat, err := p.ensureCatalog(ctx)
	if err != nil {
		return nil, err
	}

	md, exact, ok := cat.Resolve(method, version)
	if !ok {
		return nil, &UnknownMethodError{Endpoint: p.endpoint, Method: method, Version: version}
	}
	if !exact {
		p.logger.Debug("version not advertised, using latest", "method", method, "requested", version, "using", md.Version)
	}
	return p.send(ctx, method, md.Version, wire.NormalizeParams(params), headers)
}

func (p *Protocol) send(ctx context.Context, method, version string, params []any, headers http.Header) (*transport.Result, error) {
	var creds *credentials.Credentials
	if p.creds != nil {
		creds = p.creds.Credentials()
	}
	req := wire.NewRequest(CallID, method, version, params)
	return p.sender.Send(ctx, p.url, creds, transport.Call(req), headers)
}

const discoveryKey = "discover"

// ensureCatalog returns the cached catalog or joins the single discovery.
func (p *Protocol) ensureCatalog(ctx context.Context) (*Catalog, error) {
	p.mu.RLock()
	if p.state == StateReady {
		cat := p.catalog
		p.mu.RUnlock()
		return cat, nil
	}
	p.mu.RUnlock()

	ch := p.group.DoChan(discoveryKey, func() (any, error) {
		return p.discover(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Catalog), nil
	}
}

func (p *Protocol) discover(ctx context.Context) (*Catalog, error) {
	p.mu.Lock()
	if p.state == StateReady {
		cat := p.catalog
		p.mu.Unlock()
		return cat, nil
	}
	gen := p.gen
	p.state = StateDiscovering
	p.mu.Unlock()
	p.emitState(StateUninitialized, StateDiscovering, "")

	start := time.Now()
	cat, err := p.fetchCatalog(ctx)
	if err != nil {
		if transport.IsNotFound(err) {
			p.logger.Debug("endpoint has no method listing", "error", err)
			cat = newCatalog()
		} else {
			p.mu.Lock()
			if p.gen == gen {
				p.state = StateUninitialized
			}
			p.mu.Unlock()
			p.emitState(StateDiscovering, StateUninitialized, err.Error())
			return nil, fmt.Errorf("discover %s: %w", p.endpoint, err)
		}
	}

	p.mu.Lock()
	if p.gen == gen {
		p.catalog = cat
		p.state = StateReady
	}
	p.mu.Unlock()

	p.logger.Debug("catalog ready", "methods", cat.Len(), "versions", cat.Versions(), "took", time.Since(start))
	p.emitState(StateDiscovering, StateReady, fmt.Sprintf("%d methods", cat.Len()))
	return cat, nil
}

// fetchCatalog lists the methods of every advertised version. A version
// whose listing is not found is skipped.
func (p *Protocol) fetchCatalog(ctx context.Context) (*Catalog, error) {
	groups, err := p.GetVersions(ctx)
	if err != nil {
		return nil, err
	}

	cat := newCatalog()
	for _, group := range groups {
		for _, version := range group {
			res, err := p.send(ctx, MethodGetMethodTypes, wire.DefaultVersion, []any{version}, nil)
			if err != nil {
				if transport.IsNotFound(err) {
					p.logger.Debug("no method listing for version", "version", version)
					continue
				}
				return nil, err
			}
			if res.PowerOff {
				return nil, fmt.Errorf("%s %s: %w", p.endpoint, MethodGetMethodTypes, ErrPoweredOff)
			}
			for _, row := range res.Results {
				if md, ok := parseMethodRow(row, version); ok {
					cat.add(md)
				}
			}
		}
	}
	return cat, nil
}

// parseMethodRow reads one getMethodTypes row:
//
//	[name, [inputs...], [outputs...], version]
//
// The name is the first element and the version the last. Parameter
// descriptors are best effort.
func parseMethodRow(row []any, requested string) (MethodDescriptor, bool) {
	if len(row) == 0 {
		return MethodDescriptor{}, false
	}
	name, ok := row[0].(string)
	if !ok || name == "" {
		return MethodDescriptor{}, false
	}

	md := MethodDescriptor{Name: name, Version: requested}
	if len(row) > 1 {
		if v, ok := row[len(row)-1].(string); ok && v != "" {
			md.Version = v
		}
	}
	if len(row) > 3 {
		if in, ok := row[1].([]any); ok {
			md.Inputs = wire.ParseParams(in)
		}
		if out, ok := row[2].([]any); ok {
			md.Outputs = wire.ParseParams(out)
		}
	}
	return md, true
}

func (p *Protocol) emitState(from, to State, reason string) {
	p.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: p.sessionID,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		Endpoint:  p.endpoint,
		URL:       p.url,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCatalog,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}
