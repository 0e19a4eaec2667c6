package camera

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/rimage/transform"
)

// Session owns the connection to one depth camera. At most one pipeline is
// active per Session; identity and stream geometry are fixed once Connect
// succeeds.
type Session struct {
	driver Driver
	logger golog.Logger

	pipeline Pipeline
	info     DeviceInfo
}

// NewSession wraps a driver in an unconnected session.
func NewSession(driver Driver, logger golog.Logger) *Session {
	return &Session{driver: driver, logger: logger}
}

// Devices enumerates the devices currently visible to the host.
// Enumeration failures degrade to an empty result; they are diagnostic,
// not correctness-critical.
func (s *Session) Devices(ctx context.Context) []DeviceInfo {
	devices, err := s.driver.Enumerate(ctx)
	if err != nil {
		s.logger.Errorw("failed to enumerate devices", "error", err)
		return nil
	}
	s.logger.Infof("found %d depth camera(s)", len(devices))
	return devices
}

// Connect negotiates the fixed stream parameters against the device at the
// given 0-based index of Devices and starts its pipeline.
func (s *Session) Connect(ctx context.Context, deviceIndex int) error {
	if s.IsConnected() {
		return errors.Wrapf(ErrConnection, "already connected to %q", s.info.Serial)
	}

	devices := s.Devices(ctx)
	if len(devices) == 0 {
		return errors.Wrap(ErrConnection, "no depth cameras detected")
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return errors.Wrapf(ErrConnection,
			"device index %d out of range (found %d device(s))", deviceIndex, len(devices))
	}

	target := devices[deviceIndex]
	pipeline, err := s.driver.Open(ctx, target.Serial, DefaultStreamConfig())
	if err != nil {
		s.logger.Errorw("camera connection failed", "serial", target.Serial, "error", err)
		return errors.Wrapf(ErrConnection, "failed to connect to %q: %v", target.Serial, err)
	}

	s.pipeline = pipeline
	s.info = target
	if info, err := pipeline.Info(); err == nil {
		s.info = info
	}

	s.logger.Infof("streams configured: color %dx%d@%dfps, depth %dx%d@%dfps",
		ColorWidth, ColorHeight, ColorFPS, DepthWidth, DepthHeight, DepthFPS)
	return nil
}

// Disconnect stops the pipeline if one is running and clears session
// state. Safe to call repeatedly or without a prior Connect; internal
// failures are logged, never returned.
func (s *Session) Disconnect() {
	if s.pipeline != nil {
		if err := s.pipeline.Stop(); err != nil {
			s.logger.Errorw("error during disconnect", "error", err)
		}
	}
	s.pipeline = nil
	s.info = DeviceInfo{}
	s.logger.Info("camera disconnected")
}

// IsConnected reports whether a pipeline is active.
func (s *Session) IsConnected() bool {
	return s.pipeline != nil
}

// CameraInfo returns the identity of the connected device, or a zero value
// when not connected.
func (s *Session) CameraInfo() DeviceInfo {
	if !s.IsConnected() {
		s.logger.Warn("camera not connected")
		return DeviceInfo{}
	}
	return s.info
}

// CameraIntrinsics pairs the calibration parameters of both streams.
type CameraIntrinsics struct {
	Color transform.PinholeCameraIntrinsics `json:"color"`
	Depth transform.PinholeCameraIntrinsics `json:"depth"`
}

// Intrinsics returns the calibration parameters of both streams. Query
// failures degrade to zero values with a logged warning.
func (s *Session) Intrinsics() CameraIntrinsics {
	if !s.IsConnected() {
		s.logger.Warn("camera not connected")
		return CameraIntrinsics{}
	}

	colorIntr, err := s.pipeline.Intrinsics(StreamColor)
	if err != nil {
		s.logger.Warnw("failed to get color intrinsics", "error", err)
		return CameraIntrinsics{}
	}
	depthIntr, err := s.pipeline.Intrinsics(StreamDepth)
	if err != nil {
		s.logger.Warnw("failed to get depth intrinsics", "error", err)
		return CameraIntrinsics{}
	}
	return CameraIntrinsics{Color: colorIntr, Depth: depthIntr}
}
