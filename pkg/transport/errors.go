package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Transport errors.
var (
	ErrNetwork           = errors.New("network error")
	ErrHTTP              = errors.New("http error")
	ErrProtocol          = errors.New("device error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidRequest    = errors.New("invalid request")
)

// Kind classifies a failed round trip.
type Kind uint8

const (
	// KindNetwork means no HTTP response was received.
	KindNetwork Kind = iota
	// KindHTTP means the device answered with a non-2xx status.
	KindHTTP
	// KindProtocol means the device answered 2xx with an error pair.
	KindProtocol
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Network error codes.
const (
	NetTimeout  = "ETIMEDOUT"
	NetRefused  = "ECONNREFUSED"
	NetNotFound = "ENOTFOUND"
	NetReset    = "ECONNRESET"
	NetCanceled = "ECANCELED"
	NetUnknown  = "EUNKNOWN"
)

// Error is a classified round trip failure.
type Error struct {
	Kind Kind

	// Title is a short human-readable summary.
	Title string

	// Code is the device error code when one was reported, otherwise the
	// HTTP status. Zero for network errors.
	Code int

	// Message is the device message, the fault description or the cause.
	Message string

	// StatusCode is the HTTP status (KindHTTP and KindProtocol).
	StatusCode int

	// NetCode is the network error code (KindNetwork).
	NetCode string

	// Fault is the decoded SOAP fault of a legacy channel error, if any.
	Fault *wire.Fault

	// Request is the call that failed; nil for text payloads.
	Request *wire.Request
	URL     string

	Err error
}

func (e *Error) Error() string {
	prefix := e.URL
	if e.Request != nil {
		prefix = fmt.Sprintf("%s v%s", e.Request.Method, e.Request.Version)
	}
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("%s: %s %s: %s", prefix, e.Title, e.NetCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s %d: %s", prefix, e.Title, e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrNetwork) works.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

// DeviceCode returns Code as a device error code.
func (e *Error) DeviceCode() wire.Code {
	return wire.Code(e.Code)
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsNotFound reports whether err means the endpoint or method does not exist:
// HTTP 404, device 404 or device "no such method".
func IsNotFound(err error) bool {
	te, ok := AsError(err)
	if !ok || te.Kind == KindNetwork {
		return false
	}
	if te.StatusCode == 404 {
		return true
	}
	c := te.DeviceCode()
	return c == wire.CodeNotFound || c == wire.CodeNoSuchMethod
}

// IsUnauthorized reports whether err means the device rejected the
// credentials: HTTP 401/403 or device 401/403.
func IsUnauthorized(err error) bool {
	te, ok := AsError(err)
	if !ok || te.Kind == KindNetwork {
		return false
	}
	if te.StatusCode == 401 || te.StatusCode == 403 {
		return true
	}
	c := te.DeviceCode()
	return c == wire.CodeUnauthorized || c == wire.CodeForbidden
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// netCode maps a dial/read failure to a network error code.
func netCode(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return NetCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return NetTimeout
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return NetTimeout
		}
		return NetNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return NetRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return NetReset
	case errors.As(err, &netErr) && netErr.Timeout():
		return NetTimeout
	}
	return NetUnknown
}
