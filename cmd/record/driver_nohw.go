//go:build !realsense

package main

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/camera"
)

func newHardwareDriver(logger golog.Logger) (camera.Driver, error) {
	return nil, errors.New("no hardware driver compiled in; rebuild with -tags realsense or run with --fake")
}
