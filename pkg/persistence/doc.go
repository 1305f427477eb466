// Package persistence stores per-device pairing state between runs.
//
// The state file is YAML and holds one record per device host: the
// pre-shared key or paired session the controller authenticates with.
// Protocol capture files are handled separately by the log package.
package persistence
