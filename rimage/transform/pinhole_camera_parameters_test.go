package transform

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var testIntrinsics = PinholeCameraIntrinsics{
	Width:  1280,
	Height: 800,
	Fx:     821.32642889,
	Fy:     821.68607359,
	Ppx:    640.0,
	Ppy:    400.0,
}

func TestCheckValid(t *testing.T) {
	good := testIntrinsics
	test.That(t, good.CheckValid(), test.ShouldBeNil)

	var nilParams *PinholeCameraIntrinsics
	err := nilParams.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	zeroSize := testIntrinsics
	zeroSize.Width = 0
	err = zeroSize.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	badFocal := testIntrinsics
	badFocal.Fx = 0
	err = badFocal.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestPixelToPointRoundTrip(t *testing.T) {
	x, y, z := testIntrinsics.PixelToPoint(100, 200, 2.5)
	test.That(t, z, test.ShouldEqual, 2.5)

	px, py := testIntrinsics.PointToPixel(x, y, z)
	test.That(t, px, test.ShouldAlmostEqual, 100, .0001)
	test.That(t, py, test.ShouldAlmostEqual, 200, .0001)

	// zero depth projects nowhere
	px, py = testIntrinsics.PointToPixel(1, 1, 0)
	test.That(t, px, test.ShouldEqual, -1.0)
	test.That(t, py, test.ShouldEqual, -1.0)
}

func TestImagePointTo3DPoint(t *testing.T) {
	// principal point with 1500 raw units at millimeter scale is 1.5m
	// straight ahead
	vec, err := testIntrinsics.ImagePointTo3DPoint(image.Point{X: 640, Y: 400}, 1500, 0.001)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vec.X, test.ShouldAlmostEqual, 0, .0001)
	test.That(t, vec.Y, test.ShouldAlmostEqual, 0, .0001)
	test.That(t, vec.Z, test.ShouldAlmostEqual, 1.5, .0001)

	bad := PinholeCameraIntrinsics{}
	_, err = bad.ImagePointTo3DPoint(image.Point{}, 1, 0.001)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}
