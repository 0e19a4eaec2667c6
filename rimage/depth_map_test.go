package rimage

import (
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestNewDepthMapFromZ16(t *testing.T) {
	// 3x2, little endian
	buf := []byte{
		0x01, 0x00, 0x00, 0x01, 0xff, 0xff,
		0x10, 0x27, 0x00, 0x00, 0x39, 0x30,
	}
	dm := NewDepthMapFromZ16(buf, 3, 2)

	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, uint16(1))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, uint16(256))
	test.That(t, dm.GetDepth(2, 0), test.ShouldEqual, uint16(65535))
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, uint16(10000))
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, uint16(12345))

	// copies, not aliases
	buf[0] = 0xee
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, uint16(1))
}

func TestDepthMapMinMax(t *testing.T) {
	dm := NewEmptyDepthMap(4, 4)
	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, uint16(0))
	test.That(t, max, test.ShouldEqual, uint16(0))

	dm.Set(0, 0, 500)
	dm.Set(3, 3, 4000)
	dm.Set(2, 1, 1200)
	min, max = dm.MinMax()
	test.That(t, min, test.ShouldEqual, uint16(500))
	test.That(t, max, test.ShouldEqual, uint16(4000))
}

func TestDepthMapToPrettyPicture(t *testing.T) {
	dm := NewEmptyDepthMap(8, 8)
	dm.Set(1, 1, 600)
	dm.Set(6, 6, 3500)

	img := dm.ToPrettyPicture(0, 5000)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 8)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 8)

	// no reading stays black
	r, g, b, _ := img.At(0, 0).RGBA()
	test.That(t, r+g+b, test.ShouldEqual, uint32(0))

	near := img.At(1, 1).(color.RGBA)
	far := img.At(6, 6).(color.RGBA)
	test.That(t, near, test.ShouldNotResemble, far)
	test.That(t, near.A, test.ShouldEqual, uint8(255))
}

func TestDepthMapClone(t *testing.T) {
	dm := NewEmptyDepthMap(2, 2)
	dm.Set(1, 1, 77)
	clone := dm.Clone()
	clone.Set(1, 1, 88)
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, uint16(77))
	test.That(t, clone.GetDepth(1, 1), test.ShouldEqual, uint16(88))
}
