// Package simbatch runs a simulator over a batch of configuration files
// and merges the per-run statistics into one summary table.
package simbatch

// Version is the simbatch release version.
const Version = "0.1.0"
