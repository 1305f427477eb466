package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	cancels map[int]context.CancelFunc
	next    int
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.Service == "" {
		config.Service = DefaultServiceType
	}
	if config.APIPort == 0 {
		config.APIPort = DefaultAPIPort
	}
	if config.Match == nil {
		config.Match = MatchModel("BRAVIA")
	}
	return &MDNSBrowser{
		config:  config,
		logger:  slog.Default().With("component", "discovery"),
		cancels: make(map[int]context.CancelFunc),
	}
}

// SetLogger sets the logger for debug output.
func (b *MDNSBrowser) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

// Browse searches for sets. Services are aggregated by instance name:
// addresses from multiple interfaces are combined and each set is reported
// once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *DeviceService, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, fmt.Errorf("browse: browser stopped")
	}
	ctx, cancel := context.WithCancel(ctx)
	id := b.next
	b.next++
	b.cancels[id] = cancel
	b.mu.Unlock()

	out := make(chan *DeviceService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.cancels, id)
			b.mu.Unlock()
			cancel()
		}()
		b.aggregate(ctx, entries, removed, out)
	}()

	go func() {
		if err := zeroconf.Browse(ctx, b.config.Service, Domain, entries, removed, b.browserOptions()...); err != nil {
			b.logger.Debug("mdns browse failed", "service", b.config.Service, "error", err)
			cancel()
		}
	}()

	return out, nil
}

// aggregate merges entries per instance and emits each matching set once.
// Removals drop the addresses of the interface that went away; a set with
// no address left is forgotten and reported again if it comes back.
func (b *MDNSBrowser) aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *DeviceService) {
	defer close(out)

	services := make(map[string]*DeviceService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc := b.entryToService(entry)
			if existing, found := services[svc.Instance]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			if !b.config.Match(svc) {
				b.logger.Debug("ignoring service", "instance", svc.Instance, "model", svc.Model)
				continue
			}
			services[svc.Instance] = svc
			b.logger.Debug("found device", "instance", svc.Instance, "model", svc.Model, "addresses", svc.Addresses)
			select {
			case out <- svc.clone():
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// Stop stops all active browsing operations. Later Browse calls fail.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.logger.Warn("unknown interface, browsing on all", "interface", b.config.Interface, "error", err)
		}
	}
	return opts
}

func (b *MDNSBrowser) entryToService(entry *zeroconf.ServiceEntry) *DeviceService {
	txt := ParseTXT(entry.Text)
	return &DeviceService{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      uint16(entry.Port),
		Addresses: entryAddresses(entry),
		ID:        txt[TXTKeyID],
		Model:     txt[TXTKeyModel],
		Name:      txt[TXTKeyFriendlyName],
		TXT:       txt,
		APIPort:   b.config.APIPort,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var _ Browser = (*MDNSBrowser)(nil)
