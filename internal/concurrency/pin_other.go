//go:build !linux && !windows
// +build !linux,!windows

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

// PinCurrentThread is a no-op on platforms without affinity support.
func PinCurrentThread(cpuID int) (restore func(), err error) {
	return func() {}, nil
}
