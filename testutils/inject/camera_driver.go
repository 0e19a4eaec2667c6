// Package inject provides injectable camera collaborators for testing.
package inject

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/rimage/transform"
)

// Driver is an injectable camera.Driver.
type Driver struct {
	camera.Driver
	EnumerateFunc func(ctx context.Context) ([]camera.DeviceInfo, error)
	OpenFunc      func(ctx context.Context, serial string, cfg camera.StreamConfig) (camera.Pipeline, error)
}

// Enumerate calls the injected Enumerate or the real version.
func (d *Driver) Enumerate(ctx context.Context) ([]camera.DeviceInfo, error) {
	if d.EnumerateFunc == nil {
		if d.Driver == nil {
			return nil, errors.New("Enumerate unimplemented")
		}
		return d.Driver.Enumerate(ctx)
	}
	return d.EnumerateFunc(ctx)
}

// Open calls the injected Open or the real version.
func (d *Driver) Open(ctx context.Context, serial string, cfg camera.StreamConfig) (camera.Pipeline, error) {
	if d.OpenFunc == nil {
		if d.Driver == nil {
			return nil, errors.New("Open unimplemented")
		}
		return d.Driver.Open(ctx, serial, cfg)
	}
	return d.OpenFunc(ctx, serial, cfg)
}

// Pipeline is an injectable camera.Pipeline.
type Pipeline struct {
	camera.Pipeline
	WaitForFramesFunc func(ctx context.Context, timeout time.Duration) (camera.RawFrameSet, error)
	AlignToColorFunc  func(fs camera.RawFrameSet) (camera.RawFrameSet, error)
	IntrinsicsFunc    func(stream camera.StreamType) (transform.PinholeCameraIntrinsics, error)
	DepthScaleFunc    func() (float64, error)
	InfoFunc          func() (camera.DeviceInfo, error)
	StopFunc          func() error
}

// WaitForFrames calls the injected WaitForFrames or the real version.
func (p *Pipeline) WaitForFrames(ctx context.Context, timeout time.Duration) (camera.RawFrameSet, error) {
	if p.WaitForFramesFunc == nil {
		if p.Pipeline == nil {
			return camera.RawFrameSet{}, errors.New("WaitForFrames unimplemented")
		}
		return p.Pipeline.WaitForFrames(ctx, timeout)
	}
	return p.WaitForFramesFunc(ctx, timeout)
}

// AlignToColor calls the injected AlignToColor or the real version.
func (p *Pipeline) AlignToColor(fs camera.RawFrameSet) (camera.RawFrameSet, error) {
	if p.AlignToColorFunc == nil {
		if p.Pipeline == nil {
			return fs, nil
		}
		return p.Pipeline.AlignToColor(fs)
	}
	return p.AlignToColorFunc(fs)
}

// Intrinsics calls the injected Intrinsics or the real version.
func (p *Pipeline) Intrinsics(stream camera.StreamType) (transform.PinholeCameraIntrinsics, error) {
	if p.IntrinsicsFunc == nil {
		if p.Pipeline == nil {
			return transform.PinholeCameraIntrinsics{}, errors.New("Intrinsics unimplemented")
		}
		return p.Pipeline.Intrinsics(stream)
	}
	return p.IntrinsicsFunc(stream)
}

// DepthScale calls the injected DepthScale or the real version.
func (p *Pipeline) DepthScale() (float64, error) {
	if p.DepthScaleFunc == nil {
		if p.Pipeline == nil {
			return 0, errors.New("DepthScale unimplemented")
		}
		return p.Pipeline.DepthScale()
	}
	return p.DepthScaleFunc()
}

// Info calls the injected Info or the real version.
func (p *Pipeline) Info() (camera.DeviceInfo, error) {
	if p.InfoFunc == nil {
		if p.Pipeline == nil {
			return camera.DeviceInfo{}, errors.New("Info unimplemented")
		}
		return p.Pipeline.Info()
	}
	return p.InfoFunc()
}

// Stop calls the injected Stop or the real version.
func (p *Pipeline) Stop() error {
	if p.StopFunc == nil {
		if p.Pipeline == nil {
			return nil
		}
		return p.Pipeline.Stop()
	}
	return p.StopFunc()
}
