// Package rimage defines the owned color and depth images the capture
// pipeline produces, plus the file codecs used to persist them.
package rimage

import (
	"image"
	"image/color"
)

// Image is a fixed-format color image: 3 channels, 8 bits per channel,
// row-major RGB. It owns its pixel data; nothing else holds a reference.
type Image struct {
	data          []uint8
	width, height int
}

// NewImage returns a black image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		data:   make([]uint8, width*height*3),
		width:  width,
		height: height,
	}
}

// NewImageFromBGR24 copies a packed BGR24 buffer (the wire format depth
// camera SDKs hand out) into a new Image. The source buffer may be reused
// or freed by the caller immediately after this returns.
func NewImageFromBGR24(buf []uint8, width, height int) *Image {
	img := NewImage(width, height)
	n := width * height
	for i := 0; i < n; i++ {
		img.data[i*3] = buf[i*3+2]
		img.data[i*3+1] = buf[i*3+1]
		img.data[i*3+2] = buf[i*3]
	}
	return img
}

// ConvertImage copies any image.Image into an Image, dropping alpha.
func ConvertImage(img image.Image) *Image {
	if ii, ok := img.(*Image); ok {
		return ii
	}
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			k := out.kxy(x, y)
			out.data[k] = uint8(r >> 8)
			out.data[k+1] = uint8(g >> 8)
			out.data[k+2] = uint8(bb >> 8)
		}
	}
	return out
}

func (i *Image) kxy(x, y int) int {
	return ((y * i.width) + x) * 3
}

// In reports whether the point is inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

func (i *Image) Width() int {
	return i.width
}

func (i *Image) Height() int {
	return i.height
}

func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

func (i *Image) At(x, y int) color.Color {
	k := i.kxy(x, y)
	return color.NRGBA{R: i.data[k], G: i.data[k+1], B: i.data[k+2], A: 255}
}

// GetXY returns the RGB triple at (x, y).
func (i *Image) GetXY(x, y int) (uint8, uint8, uint8) {
	k := i.kxy(x, y)
	return i.data[k], i.data[k+1], i.data[k+2]
}

// SetXY sets the RGB triple at (x, y).
func (i *Image) SetXY(x, y int, r, g, b uint8) {
	k := i.kxy(x, y)
	i.data[k] = r
	i.data[k+1] = g
	i.data[k+2] = b
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	out := NewImage(i.width, i.height)
	copy(out.data, i.data)
	return out
}
