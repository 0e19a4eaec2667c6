package camera

import (
	"context"
	"time"

	"github.com/opendepth/rgbdcap/rimage/transform"
)

// Fixed stream parameters. The session always negotiates these; device
// identity and stream geometry are immutable once a connection succeeds.
const (
	ColorWidth  = 1280
	ColorHeight = 800
	ColorFPS    = 30

	DepthWidth  = 1280
	DepthHeight = 720
	DepthFPS    = 30
)

// StreamType names one of the two sensor streams.
type StreamType string

// The two streams every supported device exposes.
const (
	StreamColor = StreamType("color")
	StreamDepth = StreamType("depth")
)

// DeviceInfo identifies one physical device.
type DeviceInfo struct {
	Name            string `json:"name"`
	Serial          string `json:"serial"`
	FirmwareVersion string `json:"firmware"`
	ProductID       string `json:"product_id"`
}

// StreamConfig is the negotiated geometry of both streams. Color is packed
// 3-channel 8-bit (BGR24 on the wire); depth is 16-bit single channel.
type StreamConfig struct {
	ColorWidth  int
	ColorHeight int
	ColorFPS    int

	DepthWidth  int
	DepthHeight int
	DepthFPS    int
}

// DefaultStreamConfig returns the fixed configuration the session
// negotiates.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ColorWidth:  ColorWidth,
		ColorHeight: ColorHeight,
		ColorFPS:    ColorFPS,
		DepthWidth:  DepthWidth,
		DepthHeight: DepthHeight,
		DepthFPS:    DepthFPS,
	}
}

// RawFrame is a transient view into a sensor buffer: packed BGR24 for
// color, little-endian Z16 for depth. The data is only valid until the
// next WaitForFrames call; anything that outlives that must copy.
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
}

// Missing reports whether the stream dropped this frame.
func (f RawFrame) Missing() bool {
	return len(f.Data) == 0
}

// RawFrameSet is one matched color+depth acquisition.
type RawFrameSet struct {
	Color RawFrame
	Depth RawFrame
}

// Driver is the sensor SDK boundary: device enumeration and stream
// negotiation/start. Concrete realizations live in camera/realsense
// (hardware) and camera/fake (synthetic).
type Driver interface {
	// Enumerate returns the devices currently visible to the host.
	Enumerate(ctx context.Context) ([]DeviceInfo, error)

	// Open starts streaming from the device with the given serial using
	// the given stream configuration. Configuration rejection must match
	// ErrConfiguration.
	Open(ctx context.Context, serial string, cfg StreamConfig) (Pipeline, error)
}

// Pipeline is an active stream on one device.
type Pipeline interface {
	// WaitForFrames blocks until a new raw frame set is available or the
	// timeout elapses. Timeouts must match ErrFrameTimeout.
	WaitForFrames(ctx context.Context, timeout time.Duration) (RawFrameSet, error)

	// AlignToColor reprojects the depth frame into the color sensor's
	// geometry so identical coordinates reference the same physical ray.
	AlignToColor(fs RawFrameSet) (RawFrameSet, error)

	// Intrinsics returns the calibration parameters of one stream.
	Intrinsics(stream StreamType) (transform.PinholeCameraIntrinsics, error)

	// DepthScale returns the factor converting raw depth units to meters.
	DepthScale() (float64, error)

	// Info returns the identity of the device behind this pipeline.
	Info() (DeviceInfo, error)

	// Stop tears the stream down. Idempotent.
	Stop() error
}
