// Package accel detects whether an accelerator can host analog tiles.
//
// Detection opens a WebGPU adapter through go-webgpu. The native library is
// only wired on Windows; elsewhere no accelerator is reported.
package accel

import (
	"sync"

	"k8s.io/klog/v2"
)

// Prober reports whether an accelerator is usable. Tiles accept a Prober so
// tests and headless runs can force the answer.
type Prober func() bool

var (
	once      sync.Once
	available bool
)

// Available reports whether a WebGPU adapter can be opened.
// The probe runs once per process; later calls return the cached result.
func Available() bool {
	once.Do(func() {
		available = probe()
		klog.V(1).Infof("accelerator available: %t", available)
	})
	return available
}

// Always returns a Prober with a fixed answer.
func Always(ok bool) Prober {
	return func() bool { return ok }
}
