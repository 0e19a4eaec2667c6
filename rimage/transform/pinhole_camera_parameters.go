// Package transform holds the per-sensor calibration parameters the
// capture pipeline exposes alongside recorded frames.
package transform

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// PinholeCameraIntrinsics holds the pinhole model parameters of one
// sensor: focal lengths, principal point, and resolution.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.Wrap(ErrNoIntrinsics, "intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid size (%#v, %#v)", params.Width, params.Height)
	}
	if params.Fx <= 0 || params.Fy <= 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid focal lengths (%#v, %#v)", params.Fx, params.Fy)
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point cloud.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	// get x and y
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// PointToPixel projects a 3D point to a pixel in an image plane.
// The intrinsics parameters should be the ones of the sensor we want to project to.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x/z)*params.Fx + params.Ppx
		yPx := (y/z)*params.Fy + params.Ppy
		return xPx, yPx
	}
	// if depth is zero at this point, return negative coordinates so we know to skip it
	return -1.0, -1.0
}

// ImagePointTo3DPoint maps an image coordinate plus a raw depth reading to
// a camera-relative point in meters. depthScale converts raw sensor units
// to meters.
func (params *PinholeCameraIntrinsics) ImagePointTo3DPoint(point image.Point, d uint16, depthScale float64) (r3.Vector, error) {
	if err := params.CheckValid(); err != nil {
		return r3.Vector{}, err
	}
	px, py, pz := params.PixelToPoint(float64(point.X), float64(point.Y), float64(d)*depthScale)
	return r3.Vector{X: px, Y: py, Z: pz}, nil
}
