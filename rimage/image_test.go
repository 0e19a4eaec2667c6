package rimage

import (
	"image"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestNewImageFromBGR24(t *testing.T) {
	buf := []uint8{
		// row 0: blue, green
		255, 0, 0, 0, 255, 0,
		// row 1: red, white
		0, 0, 255, 255, 255, 255,
	}
	img := NewImageFromBGR24(buf, 2, 2)

	r, g, b := img.GetXY(0, 0)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{0, 0, 255})
	r, g, b = img.GetXY(1, 0)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{0, 255, 0})
	r, g, b = img.GetXY(0, 1)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{255, 0, 0})

	// the image must own its pixels, not alias the source buffer
	buf[0] = 7
	r, _, _ = img.GetXY(0, 0)
	test.That(t, r, test.ShouldEqual, uint8(0))
}

func TestImageBoundsAndSet(t *testing.T) {
	img := NewImage(4, 3)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, img.In(3, 2), test.ShouldBeTrue)
	test.That(t, img.In(4, 2), test.ShouldBeFalse)

	img.SetXY(2, 1, 10, 20, 30)
	r, g, b := img.GetXY(2, 1)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{10, 20, 30})

	clone := img.Clone()
	clone.SetXY(2, 1, 0, 0, 0)
	r, _, _ = img.GetXY(2, 1)
	test.That(t, r, test.ShouldEqual, uint8(10))
}

func TestImagePNGRoundTrip(t *testing.T) {
	img := NewImage(16, 9)
	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			img.SetXY(x, y, uint8(x*16), uint8(y*28), uint8((x+y)*10))
		}
	}

	fn := filepath.Join(t.TempDir(), "frame_000000_rgb.png")
	test.That(t, WriteImageToFile(fn, img), test.ShouldBeNil)

	back, err := ReadImageFromFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Width(), test.ShouldEqual, 16)
	test.That(t, back.Height(), test.ShouldEqual, 9)

	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			r1, g1, b1 := img.GetXY(x, y)
			r2, g2, b2 := back.GetXY(x, y)
			test.That(t, []uint8{r2, g2, b2}, test.ShouldResemble, []uint8{r1, g1, b1})
		}
	}
}

func TestReadImageFromFileMissing(t *testing.T) {
	_, err := ReadImageFromFile(filepath.Join(t.TempDir(), "nope.png"))
	test.That(t, err, test.ShouldNotBeNil)
}
