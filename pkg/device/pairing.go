package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
)

// Pairing method.
const (
	PairingEndpoint = "accessControl"
	PairingMethod   = "actRegister"
	PairingVersion  = "1.0"
)

// Pairing errors.
var (
	// ErrPINRequired means the set is showing a PIN and the request must be
	// repeated with it.
	ErrPINRequired = errors.New("PIN required")

	// ErrNoToken means registration succeeded but no usable auth cookie
	// came back.
	ErrNoToken = errors.New("no auth cookie in response")
)

// Pairer registers a client session with a set and returns the issued token.
// It implements credentials.TokenSource.
type Pairer struct {
	dev *Device
	now func() time.Time
}

// Pairer returns the PIN pairing flow of d.
func (d *Device) Pairer() *Pairer {
	return &Pairer{dev: d, now: time.Now}
}

// Token registers s. With an empty pin the set is asked to show one and
// ErrPINRequired is returned. The input session is never modified.
func (p *Pairer) Token(ctx context.Context, pin string, s *credentials.Session) (*credentials.Session, error) {
	if s == nil || s.UUID == "" {
		return nil, fmt.Errorf("%w: session needs a client UUID", ErrInvalidConfig)
	}

	var headers http.Header
	if pin != "" {
		valid, err := credentials.ParsePIN(pin)
		if err != nil {
			return nil, err
		}
		headers = credentials.PINHeaders(valid)
	}

	res, err := p.dev.invokeWithHeaders(ctx, PairingEndpoint, PairingMethod, PairingVersion, registerParams(s), headers)
	if err != nil {
		if transport.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %w", ErrPINRequired, err)
		}
		return nil, err
	}

	cookie := authCookie(res.Header)
	if cookie == nil {
		return nil, ErrNoToken
	}

	out := *s
	out.Token = cookie.Value
	out.Expires = cookieExpiry(cookie, p.now())
	p.dev.logger.Info("paired", "client", clientID(s), "expires", out.Expires)
	return &out, nil
}

func clientID(s *credentials.Session) string {
	return s.Name + ":" + s.UUID
}

func registerParams(s *credentials.Session) []any {
	return []any{
		map[string]any{
			"clientid": clientID(s),
			"nickname": s.Name,
			"level":    "private",
		},
		[]any{
			map[string]any{"value": "yes", "function": "WOL"},
		},
	}
}

// authCookie returns the session cookie from Set-Cookie headers. A cookie
// that deletes itself (Max-Age zero or negative) does not count.
func authCookie(h http.Header) *http.Cookie {
	for _, line := range h.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		if c.Name == credentials.CookieName && c.Value != "" && c.MaxAge >= 0 {
			return c
		}
	}
	return nil
}

func cookieExpiry(c *http.Cookie, now time.Time) time.Time {
	if c.MaxAge > 0 {
		return now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	if !c.Expires.IsZero() {
		return c.Expires
	}
	return time.Time{}
}

var _ credentials.TokenSource = (*Pairer)(nil)
