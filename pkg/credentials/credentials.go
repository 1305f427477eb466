// Package credentials holds the authentication material the invocation layer
// reads when building request headers.
//
// A device accepts either a pre-shared key, sent as the X-Auth-PSK header, or
// a session token obtained by pairing with a PIN, sent as the "auth" cookie.
// Obtaining and refreshing tokens is the job of a TokenSource; this package
// never prompts and never mutates credentials it is handed.
package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header names used for authentication.
const (
	HeaderPSK           = "X-Auth-PSK"
	HeaderCookie        = "Cookie"
	HeaderAuthorization = "Authorization"

	// CookieName is the session cookie carrying the token.
	CookieName = "auth"
)

// PINLength is the number of digits the device shows during pairing.
const PINLength = 4

// ErrInvalidPIN is returned for PINs that are not PINLength digits.
var ErrInvalidPIN = errors.New("invalid PIN")

// Session is a paired client session.
type Session struct {
	Name    string    `json:"name" yaml:"name"`
	UUID    string    `json:"uuid" yaml:"uuid"`
	Token   string    `json:"token,omitempty" yaml:"token,omitempty"`
	Expires time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// NewSession creates an unpaired session with a fresh client UUID.
func NewSession(name string) *Session {
	return &Session{
		Name: name,
		UUID: uuid.New().String(),
	}
}

// Expired reports whether the token is missing or past its expiry.
// A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Token == "" {
		return true
	}
	return !s.Expires.IsZero() && !now.Before(s.Expires)
}

// Credentials is either a pre-shared key or a session. PSK takes precedence
// when both are present.
type Credentials struct {
	PSK     string   `json:"psk,omitempty" yaml:"psk,omitempty"`
	Session *Session `json:"session,omitempty" yaml:"session,omitempty"`
}

// FromPSK returns credentials carrying a pre-shared key.
func FromPSK(psk string) *Credentials {
	return &Credentials{PSK: psk}
}

// FromSession returns credentials carrying a session.
func FromSession(s *Session) *Credentials {
	return &Credentials{Session: s}
}

// HasAuth reports whether the credentials can authenticate a request.
func (c *Credentials) HasAuth() bool {
	return c != nil && (c.PSK != "" || (c.Session != nil && c.Session.Token != ""))
}

// Headers returns the authentication headers for a request.
func (c *Credentials) Headers() http.Header {
	h := make(http.Header)
	if c == nil {
		return h
	}
	switch {
	case c.PSK != "":
		h.Set(HeaderPSK, c.PSK)
	case c.Session != nil && c.Session.Token != "":
		h.Set(HeaderCookie, CookieName+"="+c.Session.Token)
	}
	return h
}

// ParsePIN validates a PIN as shown on the device screen.
func ParsePIN(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != PINLength {
		return "", fmt.Errorf("%w: must be %d digits", ErrInvalidPIN, PINLength)
	}
	if _, err := strconv.ParseUint(s, 10, 32); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPIN, err)
	}
	return s, nil
}

// PINHeaders returns the Basic authorization header used while pairing.
// The user name is empty and the password is the PIN.
func PINHeaders(pin string) http.Header {
	h := make(http.Header)
	h.Set(HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+pin)))
	return h
}

// Source provides the credentials to use for the next request.
type Source interface {
	Credentials() *Credentials
}

// Static is a Source that always returns the same credentials.
type Static struct {
	creds *Credentials
}

// NewStatic returns a Source over fixed credentials.
func NewStatic(c *Credentials) *Static {
	return &Static{creds: c}
}

// Credentials implements Source.
func (s *Static) Credentials() *Credentials {
	if s == nil {
		return nil
	}
	return s.creds
}

// Mutable is a Source whose credentials can be replaced, e.g. after pairing.
// It is safe for concurrent use.
type Mutable struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMutable returns a Source starting with c, which may be nil.
func NewMutable(c *Credentials) *Mutable {
	return &Mutable{creds: c}
}

// Credentials implements Source.
func (m *Mutable) Credentials() *Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Set replaces the credentials used by subsequent requests.
func (m *Mutable) Set(c *Credentials) {
	m.mu.Lock()
	m.creds = c
	m.mu.Unlock()
}

// TokenSource obtains a fresh session token given the PIN shown on the
// device. Implementations own any user interaction; the invocation layer
// only calls it before use.
type TokenSource interface {
	Token(ctx context.Context, pin string, s *Session) (*Session, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context, pin string, s *Session) (*Session, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context, pin string, s *Session) (*Session, error) {
	return f(ctx, pin, s)
}

// Compile-time interface satisfaction checks.
var (
	_ Source      = (*Static)(nil)
	_ Source      = (*Mutable)(nil)
	_ TokenSource = TokenSourceFunc(nil)
)
