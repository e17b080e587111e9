// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package control provides runtime metrics, live tunables and debug
// introspection for hioload-http.
//
// Provides concurrent-safe primitives:
//   - MetricsRegistry: atomic counters plus point-in-time values
//   - ConfigStore: snapshot reads and change listeners for live settings
//   - DebugProbes: named probes dumped on demand
package control
