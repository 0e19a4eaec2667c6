package rimage

import (
	"image/png"
	"os"

	"github.com/pkg/errors"
)

// WriteImageToFile writes the image to fn as a lossless PNG.
func WriteImageToFile(fn string, img *Image) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}

// ReadImageFromFile reads a PNG back into an owned Image.
func ReadImageFromFile(fn string) (*Image, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", fn)
	}
	return ConvertImage(img), nil
}
