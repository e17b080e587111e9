// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-driven concurrency primitives for hioload-http: a shared
// execution context with outstanding-work accounting, per-connection strands
// that serialize callbacks, and the OS-thread worker pool that runs them.
// CPU pinning is implemented per platform (Linux/Windows) with a no-op
// fallback elsewhere.
package concurrency
