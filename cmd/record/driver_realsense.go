//go:build realsense

package main

import (
	"github.com/edaniels/golog"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/camera/realsense"
)

func newHardwareDriver(logger golog.Logger) (camera.Driver, error) {
	return realsense.NewDriver(logger), nil
}
