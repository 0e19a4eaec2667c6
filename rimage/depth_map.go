package rimage

import (
	"encoding/binary"
	"image"
	"image/color"
)

// DepthMap is a single-channel 16-bit depth image in raw sensor units
// (not yet scaled to meters). Like Image, it owns its data.
type DepthMap struct {
	width  int
	height int

	data []uint16
}

// NewEmptyDepthMap returns a zeroed depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]uint16, width*height),
	}
}

// NewDepthMapFromZ16 copies a little-endian Z16 buffer into a new DepthMap.
// The source buffer may be reused by the caller immediately after this
// returns.
func NewDepthMapFromZ16(buf []byte, width, height int) *DepthMap {
	dm := NewEmptyDepthMap(width, height)
	for i := range dm.data {
		dm.data[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return dm
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// HasData reports whether the map holds any pixels.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.height > 0 && dm.data != nil
}

func (dm *DepthMap) Width() int {
	return dm.width
}

func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the raw depth value at (x, y).
func (dm *DepthMap) GetDepth(x, y int) uint16 {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the raw depth value at (x, y).
func (dm *DepthMap) Set(x, y int, val uint16) {
	dm.data[dm.kxy(x, y)] = val
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// MinMax returns the smallest and largest non-zero depth values. Zero
// means "no reading" and is skipped.
func (dm *DepthMap) MinMax() (uint16, uint16) {
	var min uint16 = 65535
	var max uint16

	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ToPrettyPicture colorizes the depth map for display, mapping near to far
// across a hue ramp. hardMin/hardMax clamp the range; pixels with no
// reading stay black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax uint16) image.Image {
	min, max := dm.MinMax()

	if min < hardMin {
		min = hardMin
	}
	if hardMax > 0 && max > hardMax {
		max = hardMax
	}

	img := image.NewRGBA(image.Rect(0, 0, dm.width, dm.height))
	if max <= min {
		return img
	}
	span := float64(max) - float64(min)

	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			if z < min {
				z = min
			}
			if z > max {
				z = max
			}

			ratio := float64(z-min) / span
			hue := 30 + (200.0 * ratio)
			img.Set(x, y, colorFromHSV(hue, 1.0, 1.0))
		}
	}

	return img
}

func colorFromHSV(h, s, v float64) color.RGBA {
	c := v * s
	hp := h / 60.0
	x := c * (1 - absf(modf(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := v - c
	return color.RGBA{
		R: uint8((r + m) * 255),
		G: uint8((g + m) * 255),
		B: uint8((b + m) * 255),
		A: 255,
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func modf(x, y float64) float64 {
	for x >= y {
		x -= y
	}
	return x
}
