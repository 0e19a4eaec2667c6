package camera

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/rimage"
	"github.com/opendepth/rgbdcap/rimage/transform"
)

// frameTimeout bounds how long one acquisition may block.
const frameTimeout = time.Second

// DefaultDepthScale is the meters-per-unit fallback when the device cannot
// report its native scale (millimeter-scale sensors).
const DefaultDepthScale = 0.001

// FramePair is one aligned acquisition. Color and depth reference the same
// physical rays at identical coordinates, and both images are owned
// copies, independent of any sensor buffer.
type FramePair struct {
	// Index is 0-based and unique within a session.
	Index int
	Color *rimage.Image
	Depth *rimage.DepthMap
}

// Capturer produces aligned frame pairs from a connected session and
// tracks a monotonic frame counter.
type Capturer struct {
	session *Session
	logger  golog.Logger

	frameCount int

	depthScale     float64
	haveDepthScale bool
}

// NewCapturer returns a capturer over an already connected session; it
// never establishes a connection itself.
func NewCapturer(session *Session, logger golog.Logger) (*Capturer, error) {
	if session == nil || !session.IsConnected() {
		return nil, errors.New("session must be connected before creating a capturer")
	}
	logger.Debug("capturer initialized")
	return &Capturer{session: session, logger: logger}, nil
}

// CaptureFrame blocks until a new frame set arrives (bounded by a 1s
// timeout), aligns depth into color geometry, and returns an owned pair.
func (c *Capturer) CaptureFrame(ctx context.Context) (*FramePair, error) {
	if !c.session.IsConnected() {
		return nil, errors.Wrap(ErrCapture, "session is not connected")
	}

	fs, err := c.session.pipeline.WaitForFrames(ctx, frameTimeout)
	if err != nil {
		// a canceled context is an interrupt, not a capture failure
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, ErrFrameTimeout) {
			return nil, errors.Wrapf(err, "frame capture timeout after %v", frameTimeout)
		}
		return nil, errors.Wrapf(ErrCapture, "waiting for frames: %v", err)
	}

	aligned, err := c.session.pipeline.AlignToColor(fs)
	if err != nil {
		return nil, errors.Wrapf(ErrCapture, "depth-to-color alignment: %v", err)
	}
	// the device can intermittently drop one stream
	if aligned.Color.Missing() || aligned.Depth.Missing() {
		return nil, errors.Wrap(ErrCapture, "missing aligned frames")
	}

	// copy out of the SDK buffers before the next wait can recycle them
	pair := &FramePair{
		Index: c.frameCount,
		Color: rimage.NewImageFromBGR24(aligned.Color.Data, aligned.Color.Width, aligned.Color.Height),
		Depth: rimage.NewDepthMapFromZ16(aligned.Depth.Data, aligned.Depth.Width, aligned.Depth.Height),
	}
	c.frameCount++
	return pair, nil
}

// FrameCount returns the number of successful captures since construction.
func (c *Capturer) FrameCount() int {
	return c.frameCount
}

// DepthScale returns the meters-per-unit factor for raw depth values. The
// first call queries the device; failures fall back to DefaultDepthScale.
// Either result is cached, so the value never changes within a session.
func (c *Capturer) DepthScale() float64 {
	if c.haveDepthScale {
		return c.depthScale
	}

	var scale float64
	var err error
	if c.session.IsConnected() {
		scale, err = c.session.pipeline.DepthScale()
	} else {
		err = errors.New("session is not connected")
	}
	if err != nil {
		c.logger.Warnw("could not get depth scale, falling back to default",
			"error", err, "default", DefaultDepthScale)
		scale = DefaultDepthScale
	}
	c.depthScale = scale
	c.haveDepthScale = true
	return c.depthScale
}

// DepthIntrinsics returns the depth stream's calibration parameters, or a
// zero value on failure.
func (c *Capturer) DepthIntrinsics() transform.PinholeCameraIntrinsics {
	return c.intrinsics(StreamDepth)
}

// ColorIntrinsics returns the color stream's calibration parameters, or a
// zero value on failure.
func (c *Capturer) ColorIntrinsics() transform.PinholeCameraIntrinsics {
	return c.intrinsics(StreamColor)
}

func (c *Capturer) intrinsics(stream StreamType) transform.PinholeCameraIntrinsics {
	if !c.session.IsConnected() {
		c.logger.Warn("camera not connected")
		return transform.PinholeCameraIntrinsics{}
	}
	intr, err := c.session.pipeline.Intrinsics(stream)
	if err != nil {
		c.logger.Warnw("could not get intrinsics", "stream", stream, "error", err)
		return transform.PinholeCameraIntrinsics{}
	}
	return intr
}
