// Package inspect renders endpoint descriptions and decoded call results
// for terminal output.
package inspect
