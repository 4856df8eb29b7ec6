package plugin

import "errors"

// Sentinel errors a bundle's code can match with errors.Is. The kernel's
// facade returns them as the InnerError of a richer *errors.AppError
// (package github.com/oracipher/kernel/errors), which unwraps to them;
// plugin code itself only needs the sentinels.
var (
	// ErrKernelGone is returned (wrapped) by SpawnTask after the kernel has
	// shut down; the facade's other methods return zero values instead.
	ErrKernelGone = errors.New("kernel: facade's kernel reference is gone")

	// ErrNotActive is returned by SpawnTask once the facade's stop signal
	// has been set; it is never cleared once set.
	ErrNotActive = errors.New("kernel: facade is no longer active")

	// ErrBusClosed is not returned by this kernel: after shutdown the
	// facade's Emit and Call return nil.
	ErrBusClosed = errors.New("kernel: event registry is closed")
)
