package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Config configures an Invoker.
type Config struct {
	// Timeout bounds one round trip when the context has no deadline
	// (default: 10s).
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Zero disables pacing.
	RateLimit float64

	// Burst is the number of requests allowed back to back (default: 1).
	Burst int

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives request/response events. Nil disables capture.
	ProtocolLogger log.Logger

	// SessionID tags protocol events (default: a fresh UUID).
	SessionID string
}

// DefaultConfig returns the default invoker configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Burst:   1,
	}
}

// Invoker performs a single round trip to a device and normalizes the outcome
// into a Result or an *Error. It is safe for concurrent use.
type Invoker struct {
	poster    Poster
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
	plog      log.Logger
	sessionID string
}

// NewInvoker creates an invoker. A nil poster uses NewHTTPPoster(nil).
func NewInvoker(poster Poster, config Config) *Invoker {
	if poster == nil {
		poster = NewHTTPPoster(nil)
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SessionID == "" {
		config.SessionID = log.NewSessionID()
	}

	inv := &Invoker{
		poster:    poster,
		timeout:   config.Timeout,
		logger:    config.Logger,
		plog:      log.OrNoop(config.ProtocolLogger),
		sessionID: config.SessionID,
	}
	if config.RateLimit > 0 {
		inv.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst)
	}
	return inv
}

// SessionID returns the identifier tagging this invoker's protocol events.
func (i *Invoker) SessionID() string {
	return i.sessionID
}

// Send posts payload to url and classifies the outcome.
//
// Authentication headers come from creds. Extra headers are merged first and
// never override authentication or content headers.
func (i *Invoker) Send(ctx context.Context, url string, creds *credentials.Credentials, payload Payload, extra http.Header) (*Result, error) {
	body, err := payload.encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	header := buildHeader(creds, payload, extra)
	req := payload.Request()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// The limiter refuses waits that would outlive the deadline.
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return nil, i.fail(url, req, i.networkError(url, req, err))
		}
	}

	i.logRequest(url, req)
	start := time.Now()
	resp, err := i.poster.Post(ctx, url, header, body)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, i.fail(url, req, i.networkError(url, req, err))
	}

	result, cerr := classify(url, req, payload.IsText(), resp)
	if cerr != nil {
		return nil, i.fail(url, req, cerr)
	}
	i.logResponse(url, req, result, elapsed)
	return result, nil
}

func buildHeader(creds *credentials.Credentials, payload Payload, extra http.Header) http.Header {
	h := make(http.Header)
	for k, vs := range extra {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	payload.contentHeaders(h)
	for k, vs := range creds.Headers() {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}

// classify turns a received response into a result or a classified error.
func classify(url string, req *wire.Request, text bool, resp *HTTPResponse) (*Result, *Error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpError(url, req, resp)
	}

	result := &Result{StatusCode: resp.StatusCode, Header: resp.Header}
	if text {
		result.Body = resp.Body
		return result, nil
	}

	env, err := wire.DecodeResponse(resp.Body)
	if err != nil {
		return nil, &Error{
			Kind:       KindProtocol,
			Title:      "Malformed Response",
			Message:    err.Error(),
			StatusCode: resp.StatusCode,
			Request:    req,
			URL:        url,
			Err:        fmt.Errorf("%w: %w", ErrMalformedResponse, err),
		}
	}

	switch de := env.Error; {
	case de == nil:
		result.Result = env.Result
		result.Results = env.Results
	case wire.IsBenignIllegalState(de):
		result.Result = wire.ApplicationSource()
		result.Synthesized = true
	case wire.IsPowerOff(de):
		result.Result = []any{int(de.Code), de.Message}
		result.PowerOff = true
	default:
		return nil, &Error{
			Kind:       KindProtocol,
			Title:      "Device Error",
			Code:       int(de.Code),
			Message:    de.Message,
			StatusCode: resp.StatusCode,
			Request:    req,
			URL:        url,
			Err:        de,
		}
	}
	return result, nil
}

func httpError(url string, req *wire.Request, resp *HTTPResponse) *Error {
	e := &Error{
		Kind:       KindHTTP,
		Title:      http.StatusText(resp.StatusCode),
		Code:       resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Request:    req,
		URL:        url,
	}
	if e.Title == "" {
		e.Title = "HTTP Error"
		e.Message = fmt.Sprintf("status %d", resp.StatusCode)
	}

	if wire.LooksLikeJSON(resp.Body) {
		if env, err := wire.DecodeResponse(resp.Body); err == nil && env.Error != nil {
			e.Code = int(env.Error.Code)
			e.Message = env.Error.Message
			e.Err = env.Error
		}
		return e
	}
	if fault, err := wire.DecodeFault(resp.Body); err == nil {
		e.Fault = fault
		if fault.ErrorDescription != "" {
			e.Message = fault.ErrorDescription
		}
	}
	return e
}

func (i *Invoker) networkError(url string, req *wire.Request, err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Title:   "Network Error",
		NetCode: netCode(err),
		Message: err.Error(),
		Request: req,
		URL:     url,
		Err:     err,
	}
}

// fail logs a classified error and returns it.
func (i *Invoker) fail(url string, req *wire.Request, e *Error) error {
	i.logger.Debug("call failed", "url", url, "kind", e.Kind.String(), "code", e.Code, "net_code", e.NetCode, "message", e.Message)

	code := e.Code
	data := &log.ErrorEventData{
		Layer:   log.LayerTransport,
		Kind:    e.Kind.String(),
		Message: e.Message,
		Context: "send",
	}
	if e.Kind == KindNetwork {
		data.Context = e.NetCode
	} else {
		data.Code = &code
	}
	i.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: i.sessionID,
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		URL:       url,
		Error:     data,
	})
	return e
}

func (i *Invoker) logRequest(url string, req *wire.Request) {
	msg := &log.MessageEvent{Type: log.MessageTypeRequest}
	if req != nil {
		msg.CallID = req.ID
		msg.Method = req.Method
		msg.Version = req.Version
		msg.ParamCount = len(req.Params)
		msg.Payload = req.Params
		i.logger.Debug("call", "url", url, "method", req.Method, "version", req.Version)
	} else {
		i.logger.Debug("call", "url", url)
	}
	i.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: i.sessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		URL:       url,
		Message:   msg,
	})
}

func (i *Invoker) logResponse(url string, req *wire.Request, result *Result, elapsed time.Duration) {
	status := result.StatusCode
	msg := &log.MessageEvent{
		Type:        log.MessageTypeResponse,
		StatusCode:  &status,
		PowerOff:    result.PowerOff,
		Synthesized: result.Synthesized,
		Duration:    &elapsed,
		Payload:     result.Value(),
	}
	if req != nil {
		msg.CallID = req.ID
		msg.Method = req.Method
		msg.Version = req.Version
	}
	if result.PowerOff {
		i.logger.Debug("device is powered off", "url", url)
	}
	i.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: i.sessionID,
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		URL:       url,
		Message:   msg,
	})
}
