// Package service implements the per-endpoint service protocol: it learns
// which methods an endpoint offers at which versions, resolves a caller's
// requested version against that catalog and dispatches the call.
//
// # Discovery
//
// The first operation that needs the catalog asks the endpoint for its
// version groups (getVersions) and then lists the methods of every version
// (getMethodTypes). The result is cached for the lifetime of the Protocol or
// until Reset. Concurrent callers share one in-flight discovery, and a
// caller giving up on its context does not abort it for the others.
//
// An endpoint that answers discovery with "not found" gets an empty catalog;
// every Invoke on it then fails locally with ErrUnknownMethod.
//
// # Version Resolution
//
// Methods are addressed by (name, version). When the requested version is
// not advertised but the method exists, the latest discovered version of the
// method is used instead:
//
//	advertised: getVolumeInformation 1.0, 1.1
//	requested:  getVolumeInformation 2.0  → sent as 1.1
//
// The Protocol never retries; waking a sleeping device and retrying is left
// to the caller (see package device).
package service
