// Package camera owns the depth camera connection lifecycle and per-frame
// acquisition with depth-to-color alignment.
package camera

import "github.com/pkg/errors"

// The closed set of camera failure kinds. Every error this package returns
// matches ErrCamera with errors.Is, and exactly one of the kinds beneath
// it, so callers can catch "any camera problem" or discriminate.
var (
	// ErrCamera is the supertype of all camera failures.
	ErrCamera = errors.New("camera error")

	// ErrConnection covers device-absent, bad-index, and stream
	// negotiation/start failures.
	ErrConnection = errors.Wrap(ErrCamera, "connection failed")

	// ErrConfiguration covers stream parameter rejection.
	ErrConfiguration = errors.Wrap(ErrCamera, "stream configuration failed")

	// ErrCapture covers per-frame acquisition failures.
	ErrCapture = errors.Wrap(ErrCamera, "frame capture failed")

	// ErrFrameTimeout is the capture failure for a bounded wait elapsing
	// with no frame set. Drivers must return errors matching this so the
	// capturer can distinguish timeouts from other causes.
	ErrFrameTimeout = errors.Wrap(ErrCapture, "timeout waiting for frames")
)
