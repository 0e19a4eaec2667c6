// Package fake implements a synthetic camera driver which produces
// deterministic color and depth frames without any hardware attached.
package fake

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/rimage/transform"
)

var fakeDevice = camera.DeviceInfo{
	Name:            "Fake RGBD Camera",
	Serial:          "000000000000",
	FirmwareVersion: "0.0.0",
	ProductID:       "0000",
}

var fakeColorIntrinsics = transform.PinholeCameraIntrinsics{
	Width:  camera.ColorWidth,
	Height: camera.ColorHeight,
	Fx:     821.32642889,
	Fy:     821.68607359,
	Ppx:    640.0,
	Ppy:    400.0,
}

var fakeDepthIntrinsics = transform.PinholeCameraIntrinsics{
	Width:  camera.DepthWidth,
	Height: camera.DepthHeight,
	Fx:     734.59435671,
	Fy:     734.59435671,
	Ppx:    640.0,
	Ppy:    360.0,
}

// Driver is a camera.Driver exposing exactly one synthetic device.
type Driver struct {
	logger golog.Logger
}

// NewDriver returns a synthetic driver.
func NewDriver(logger golog.Logger) *Driver {
	return &Driver{logger: logger}
}

// Enumerate returns the single synthetic device.
func (d *Driver) Enumerate(ctx context.Context) ([]camera.DeviceInfo, error) {
	return []camera.DeviceInfo{fakeDevice}, nil
}

// Open starts a synthetic pipeline.
func (d *Driver) Open(ctx context.Context, serial string, cfg camera.StreamConfig) (camera.Pipeline, error) {
	if serial != fakeDevice.Serial {
		return nil, errors.Errorf("no fake device with serial %q", serial)
	}
	if cfg.ColorWidth <= 0 || cfg.ColorHeight <= 0 || cfg.DepthWidth <= 0 || cfg.DepthHeight <= 0 {
		return nil, errors.Wrap(camera.ErrConfiguration, "stream dimensions must be positive")
	}
	d.logger.Debugw("fake pipeline started",
		"color", cfg.ColorWidth*cfg.ColorHeight, "depth", cfg.DepthWidth*cfg.DepthHeight)
	return &pipeline{
		cfg:      cfg,
		colorBuf: make([]byte, cfg.ColorWidth*cfg.ColorHeight*3),
		depthBuf: make([]byte, cfg.DepthWidth*cfg.DepthHeight*2),
	}, nil
}

// pipeline synthesizes one frame set per wait. Like a real SDK, it hands
// out views into internal buffers that are rewritten on the next wait, so
// callers get the same transience contract they would from hardware.
type pipeline struct {
	cfg     camera.StreamConfig
	stopped bool
	frame   int

	colorBuf   []byte
	depthBuf   []byte
	alignedBuf []byte
}

func (p *pipeline) WaitForFrames(ctx context.Context, timeout time.Duration) (camera.RawFrameSet, error) {
	if p.stopped {
		return camera.RawFrameSet{}, errors.New("pipeline is stopped")
	}
	if err := ctx.Err(); err != nil {
		return camera.RawFrameSet{}, err
	}

	p.renderColor()
	p.renderDepth()
	p.frame++

	return camera.RawFrameSet{
		Color: camera.RawFrame{Data: p.colorBuf, Width: p.cfg.ColorWidth, Height: p.cfg.ColorHeight},
		Depth: camera.RawFrame{Data: p.depthBuf, Width: p.cfg.DepthWidth, Height: p.cfg.DepthHeight},
	}, nil
}

// renderColor paints a horizontal hue gradient with a vertical stripe that
// advances one column per frame, so consecutive frames differ.
func (p *pipeline) renderColor() {
	w, h := p.cfg.ColorWidth, p.cfg.ColorHeight
	stripe := p.frame % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := (y*w + x) * 3
			if x == stripe {
				p.colorBuf[k] = 255
				p.colorBuf[k+1] = 255
				p.colorBuf[k+2] = 255
				continue
			}
			// BGR on the wire
			p.colorBuf[k] = uint8(255 * x / w)
			p.colorBuf[k+1] = uint8(255 * y / h)
			p.colorBuf[k+2] = uint8(255 * (w - x) / w)
		}
	}
}

// renderDepth paints a radial ramp in millimeters, nearest at center.
func (p *pipeline) renderDepth() {
	w, h := p.cfg.DepthWidth, p.cfg.DepthHeight
	cx, cy := float64(w)/2, float64(h)/2
	maxR := math.Hypot(cx, cy)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			mm := 500 + uint16(3500*r/maxR)
			binary.LittleEndian.PutUint16(p.depthBuf[(y*w+x)*2:], mm)
		}
	}
}

// AlignToColor resamples the depth frame into color geometry with a
// nearest-neighbor scale. Hardware drivers reproject through extrinsics;
// for synthetic frames a scale keeps the per-pixel correspondence contract
// without a calibration model.
func (p *pipeline) AlignToColor(fs camera.RawFrameSet) (camera.RawFrameSet, error) {
	if p.stopped {
		return camera.RawFrameSet{}, errors.New("pipeline is stopped")
	}
	if fs.Color.Missing() || fs.Depth.Missing() {
		return fs, nil
	}

	cw, ch := fs.Color.Width, fs.Color.Height
	if p.alignedBuf == nil {
		p.alignedBuf = make([]byte, cw*ch*2)
	}
	dw, dh := fs.Depth.Width, fs.Depth.Height
	for y := 0; y < ch; y++ {
		sy := y * dh / ch
		for x := 0; x < cw; x++ {
			sx := x * dw / cw
			v := binary.LittleEndian.Uint16(fs.Depth.Data[(sy*dw+sx)*2:])
			binary.LittleEndian.PutUint16(p.alignedBuf[(y*cw+x)*2:], v)
		}
	}

	return camera.RawFrameSet{
		Color: fs.Color,
		Depth: camera.RawFrame{Data: p.alignedBuf, Width: cw, Height: ch},
	}, nil
}

func (p *pipeline) Intrinsics(stream camera.StreamType) (transform.PinholeCameraIntrinsics, error) {
	switch stream {
	case camera.StreamColor:
		return fakeColorIntrinsics, nil
	case camera.StreamDepth:
		return fakeDepthIntrinsics, nil
	default:
		return transform.PinholeCameraIntrinsics{}, errors.Errorf("unknown stream %q", stream)
	}
}

func (p *pipeline) DepthScale() (float64, error) {
	return 0.001, nil
}

func (p *pipeline) Info() (camera.DeviceInfo, error) {
	return fakeDevice, nil
}

func (p *pipeline) Stop() error {
	p.stopped = true
	return nil
}
