package discovery

import (
	"context"
	"errors"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// mDNS defaults.
const (
	// DefaultServiceType is the service sets announce on the network.
	DefaultServiceType = "_googlecast._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout is the default browse duration for one-shot lookups.
	BrowseTimeout = 5 * time.Second

	// DefaultAPIPort is the port the API listens on.
	DefaultAPIPort = 80

	// APIPath is the API root below the host.
	APIPath = "/sony"
)

// TXT record keys.
const (
	TXTKeyID           = "id"
	TXTKeyModel        = "md"
	TXTKeyFriendlyName = "fn"
)

// ErrNotFound is returned when browsing ends without a match.
var ErrNotFound = errors.New("no device found")

// Browser finds sets on the network.
type Browser interface {
	// Browse yields each set once, as soon as it is first seen. The channel
	// is closed when ctx is done or the browser is stopped.
	Browse(ctx context.Context) (<-chan *DeviceService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// MatchFunc decides whether a service is a set worth reporting.
type MatchFunc func(*DeviceService) bool

// MatchModel matches services whose model contains any of the substrings,
// case-insensitively.
func MatchModel(substrings ...string) MatchFunc {
	return func(svc *DeviceService) bool {
		model := strings.ToUpper(svc.Model)
		for _, s := range substrings {
			if strings.Contains(model, strings.ToUpper(s)) {
				return true
			}
		}
		return false
	}
}

// MatchAll accepts every service.
func MatchAll(*DeviceService) bool { return true }

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Service is the DNS-SD service type (default: DefaultServiceType).
	Service string

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	// APIPort is the port BaseURL points at (default: DefaultAPIPort).
	APIPort int

	// Match filters services (default: models containing "BRAVIA").
	Match MatchFunc
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Service: DefaultServiceType,
		APIPort: DefaultAPIPort,
		Match:   MatchModel("BRAVIA"),
	}
}

// DeviceService is one set seen on the network.
type DeviceService struct {
	// Instance is the mDNS instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	// Port is the advertised service port, not the API port.
	Port uint16

	// Addresses are the IP addresses seen across all interfaces.
	Addresses []string

	// ID, Model and Name come from the TXT record.
	ID    string
	Model string
	Name  string

	// TXT holds every TXT key, lower-cased.
	TXT map[string]string

	// APIPort is the port BaseURL points at.
	APIPort int
}

// DisplayName returns the friendly name, falling back to the model and
// the instance name.
func (s *DeviceService) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Model != "":
		return s.Model
	default:
		return s.Instance
	}
}

// BaseURL returns the API root, preferring an IPv4 address, then any
// address, then the host name.
func (s *DeviceService) BaseURL() string {
	host := s.preferredHost()
	if s.APIPort != 0 && s.APIPort != DefaultAPIPort {
		host = net.JoinHostPort(host, strconv.Itoa(s.APIPort))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + APIPath
}

func (s *DeviceService) preferredHost() string {
	for _, addr := range s.Addresses {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return strings.TrimSuffix(s.Host, ".")
}

func (s *DeviceService) clone() *DeviceService {
	out := *s
	out.Addresses = slices.Clone(s.Addresses)
	out.TXT = maps.Clone(s.TXT)
	return &out
}

// ParseTXT parses "key=value" TXT strings. Keys are lower-cased; a string
// without "=" is a key with an empty value. The first occurrence of a key
// wins.
func ParseTXT(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		k, v, _ := strings.Cut(t, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := m[k]; !dup {
			m[k] = v
		}
	}
	return m
}

// FindFirst returns the first set the browser reports.
func FindFirst(ctx context.Context, b Browser) (*DeviceService, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case svc, ok := <-results:
		if !ok {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FindAll collects sets until ctx is done or browsing ends. An expired
// context is not an error; the sets found so far are returned.
func FindAll(ctx context.Context, b Browser) ([]*DeviceService, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*DeviceService
	for svc := range results {
		out = append(out, svc)
	}
	return out, nil
}
