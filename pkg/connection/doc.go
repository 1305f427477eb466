// Package connection handles the power lifecycle of a device that may be
// asleep when a call arrives.
//
// A set in standby still answers HTTP but reports its display as off. The
// Manager records that, sends a wake signal and probes the device with
// exponential backoff until it answers normally:
//
//  1. Wake signal (wake-on-LAN or similar, supplied by the caller)
//  2. Probe after 500ms, 1s, 2s, 4s, then every 8s
//  3. Give up after MaxAttempts probes with ErrWakeFailed
//
// # Jitter
//
// Delays carry up to 25% random jitter:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A probe error other than "still asleep" ends the sequence immediately.
package connection
