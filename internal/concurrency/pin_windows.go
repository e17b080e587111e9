//go:build windows
// +build windows

// File: internal/concurrency/pin_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows CPU affinity for worker threads via SetThreadAffinityMask.

package concurrency

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = modkernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread      = modkernel32.NewProc("GetCurrentThread")
)

// PinCurrentThread binds the calling OS thread to cpuID and returns a func
// restoring the previous mask. The caller must hold runtime.LockOSThread.
func PinCurrentThread(cpuID int) (restore func(), err error) {
	handle, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << uint(cpuID)
	old, _, callErr := procSetThreadAffinityMask.Call(handle, mask)
	if old == 0 {
		return func() {}, fmt.Errorf("SetThreadAffinityMask failed: %v", callErr)
	}
	return func() { _, _, _ = procSetThreadAffinityMask.Call(handle, old) }, nil
}
