// Package discovery finds sets on the local network.
//
// Sets announce themselves over mDNS. MDNSBrowser browses for them with
// zeroconf, aggregates the addresses each instance reports on different
// interfaces and yields one DeviceService per set. DeviceService.BaseURL
// gives the API root the device and service packages expect.
//
// Browsing is passive and keeps running until the context is done:
//
//	b := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
//	ctx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
//	defer cancel()
//	svc, err := discovery.FindFirst(ctx, b)
//
// SSDP is not implemented here; a Browser backed by an SSDP listener can be
// plugged in wherever a Browser is accepted.
package discovery
