//go:build realsense

// Package realsense realizes the camera driver boundary against
// librealsense2's C API. Build with the realsense tag and the SDK
// installed; everything else in the module builds without it.
package realsense

/*
#cgo LDFLAGS: -lrealsense2
#include <stdlib.h>
#include <librealsense2/rs.h>
*/
import "C"

import (
	"context"
	"strings"
	"time"
	"unsafe"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/rimage/transform"
)

// Driver enumerates and opens RealSense devices.
type Driver struct {
	logger golog.Logger
}

// NewDriver returns a librealsense2-backed driver.
func NewDriver(logger golog.Logger) *Driver {
	return &Driver{logger: logger}
}

func rsErr(e *C.rs2_error) error {
	if e == nil {
		return nil
	}
	defer C.rs2_free_error(e)
	return errors.New(C.GoString(C.rs2_get_error_message(e)))
}

// Enumerate lists the RealSense devices visible to the host.
func (d *Driver) Enumerate(ctx context.Context) ([]camera.DeviceInfo, error) {
	var e *C.rs2_error
	rsCtx := C.rs2_create_context(C.RS2_API_VERSION, &e)
	if err := rsErr(e); err != nil {
		return nil, errors.Wrap(err, "creating context")
	}
	defer C.rs2_delete_context(rsCtx)

	list := C.rs2_query_devices(rsCtx, &e)
	if err := rsErr(e); err != nil {
		return nil, errors.Wrap(err, "querying devices")
	}
	defer C.rs2_delete_device_list(list)

	count := int(C.rs2_get_device_count(list, &e))
	if err := rsErr(e); err != nil {
		return nil, errors.Wrap(err, "counting devices")
	}

	devices := make([]camera.DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		dev := C.rs2_create_device(list, C.int(i), &e)
		if err := rsErr(e); err != nil {
			return nil, errors.Wrapf(err, "opening device %d", i)
		}
		devices = append(devices, deviceInfo(dev))
		C.rs2_delete_device(dev)
	}
	return devices, nil
}

func deviceInfo(dev *C.rs2_device) camera.DeviceInfo {
	get := func(field C.rs2_camera_info) string {
		var e *C.rs2_error
		s := C.rs2_get_device_info(dev, field, &e)
		if e != nil {
			C.rs2_free_error(e)
			return ""
		}
		return C.GoString(s)
	}
	return camera.DeviceInfo{
		Name:            get(C.RS2_CAMERA_INFO_NAME),
		Serial:          get(C.RS2_CAMERA_INFO_SERIAL_NUMBER),
		FirmwareVersion: get(C.RS2_CAMERA_INFO_FIRMWARE_VERSION),
		ProductID:       get(C.RS2_CAMERA_INFO_PRODUCT_ID),
	}
}

// Open negotiates the fixed streams on the device with the given serial
// and starts its pipeline plus a depth-to-color align block.
func (d *Driver) Open(ctx context.Context, serial string, cfg camera.StreamConfig) (camera.Pipeline, error) {
	var e *C.rs2_error
	rsCtx := C.rs2_create_context(C.RS2_API_VERSION, &e)
	if err := rsErr(e); err != nil {
		return nil, errors.Wrap(err, "creating context")
	}

	p := &pipeline{rsCtx: rsCtx}

	p.pipe = C.rs2_create_pipeline(rsCtx, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "creating pipeline")
	}

	conf := C.rs2_create_config(&e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "creating config")
	}
	defer C.rs2_delete_config(conf)

	cSerial := C.CString(serial)
	defer C.free(unsafe.Pointer(cSerial))
	C.rs2_config_enable_device(conf, cSerial, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrapf(err, "selecting device %q", serial)
	}

	C.rs2_config_enable_stream(conf, C.RS2_STREAM_COLOR, -1,
		C.int(cfg.ColorWidth), C.int(cfg.ColorHeight), C.RS2_FORMAT_BGR8, C.int(cfg.ColorFPS), &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrapf(camera.ErrConfiguration, "color stream: %v", err)
	}
	C.rs2_config_enable_stream(conf, C.RS2_STREAM_DEPTH, -1,
		C.int(cfg.DepthWidth), C.int(cfg.DepthHeight), C.RS2_FORMAT_Z16, C.int(cfg.DepthFPS), &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrapf(camera.ErrConfiguration, "depth stream: %v", err)
	}

	p.profile = C.rs2_pipeline_start_with_config(p.pipe, conf, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "starting pipeline")
	}

	p.align = C.rs2_create_align(C.RS2_STREAM_COLOR, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "creating align block")
	}
	p.alignQueue = C.rs2_create_frame_queue(1, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "creating align queue")
	}
	C.rs2_start_processing_queue(p.align, p.alignQueue, &e)
	if err := rsErr(e); err != nil {
		p.Stop() //nolint:errcheck
		return nil, errors.Wrap(err, "starting align block")
	}

	d.logger.Debugw("realsense pipeline started", "serial", serial)
	return p, nil
}

type pipeline struct {
	rsCtx      *C.rs2_context
	pipe       *C.rs2_pipeline
	profile    *C.rs2_pipeline_profile
	align      *C.rs2_processing_block
	alignQueue *C.rs2_frame_queue

	// composite frame from the last wait, consumed by AlignToColor
	lastFrames *C.rs2_frame
	stopped    bool
}

func (p *pipeline) WaitForFrames(ctx context.Context, timeout time.Duration) (camera.RawFrameSet, error) {
	if err := ctx.Err(); err != nil {
		return camera.RawFrameSet{}, err
	}
	p.releaseLast()

	var e *C.rs2_error
	frames := C.rs2_pipeline_wait_for_frames(p.pipe, C.uint(timeout.Milliseconds()), &e)
	if err := rsErr(e); err != nil {
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "arrive") || strings.Contains(lower, "timeout") {
			return camera.RawFrameSet{}, errors.Wrapf(camera.ErrFrameTimeout, "%v", err)
		}
		return camera.RawFrameSet{}, err
	}

	p.lastFrames = frames
	return extractFrameSet(frames)
}

// AlignToColor pushes the last composite frame through the align block and
// copies the reprojected frames out before releasing SDK memory.
func (p *pipeline) AlignToColor(camera.RawFrameSet) (camera.RawFrameSet, error) {
	if p.lastFrames == nil {
		return camera.RawFrameSet{}, errors.New("no frame set to align")
	}

	var e *C.rs2_error
	// the align block takes ownership of one reference
	C.rs2_frame_add_ref(p.lastFrames, &e)
	if err := rsErr(e); err != nil {
		return camera.RawFrameSet{}, err
	}
	C.rs2_process_frame(p.align, p.lastFrames, &e)
	if err := rsErr(e); err != nil {
		return camera.RawFrameSet{}, err
	}

	aligned := C.rs2_wait_for_frame(p.alignQueue, 5000, &e)
	if err := rsErr(e); err != nil {
		return camera.RawFrameSet{}, err
	}
	defer C.rs2_release_frame(aligned)

	return extractFrameSet(aligned)
}

// extractFrameSet copies the color and depth members of a composite frame
// into Go memory.
func extractFrameSet(frames *C.rs2_frame) (camera.RawFrameSet, error) {
	var e *C.rs2_error
	var fs camera.RawFrameSet

	count := int(C.rs2_embedded_frames_count(frames, &e))
	if err := rsErr(e); err != nil {
		return fs, err
	}

	for i := 0; i < count; i++ {
		f := C.rs2_extract_frame(frames, C.int(i), &e)
		if err := rsErr(e); err != nil {
			return fs, err
		}

		sp := C.rs2_get_frame_stream_profile(f, &e)
		if err := rsErr(e); err != nil {
			C.rs2_release_frame(f)
			return fs, err
		}
		var stream C.rs2_stream
		var format C.rs2_format
		var index, uid, framerate C.int
		C.rs2_get_stream_profile_data(sp, &stream, &format, &index, &uid, &framerate, &e)
		if err := rsErr(e); err != nil {
			C.rs2_release_frame(f)
			return fs, err
		}

		width := int(C.rs2_get_frame_width(f, &e))
		height := int(C.rs2_get_frame_height(f, &e))
		size := int(C.rs2_get_frame_data_size(f, &e))
		data := C.rs2_get_frame_data(f, &e)
		if err := rsErr(e); err != nil {
			C.rs2_release_frame(f)
			return fs, err
		}

		raw := camera.RawFrame{
			Data:   C.GoBytes(unsafe.Pointer(data), C.int(size)),
			Width:  width,
			Height: height,
		}
		switch stream {
		case C.RS2_STREAM_COLOR:
			fs.Color = raw
		case C.RS2_STREAM_DEPTH:
			fs.Depth = raw
		}
		C.rs2_release_frame(f)
	}
	return fs, nil
}

func (p *pipeline) Intrinsics(stream camera.StreamType) (transform.PinholeCameraIntrinsics, error) {
	var target C.rs2_stream
	switch stream {
	case camera.StreamColor:
		target = C.RS2_STREAM_COLOR
	case camera.StreamDepth:
		target = C.RS2_STREAM_DEPTH
	default:
		return transform.PinholeCameraIntrinsics{}, errors.Errorf("unknown stream %q", stream)
	}

	var e *C.rs2_error
	list := C.rs2_pipeline_profile_get_streams(p.profile, &e)
	if err := rsErr(e); err != nil {
		return transform.PinholeCameraIntrinsics{}, err
	}
	defer C.rs2_delete_stream_profiles_list(list)

	count := int(C.rs2_get_stream_profiles_count(list, &e))
	if err := rsErr(e); err != nil {
		return transform.PinholeCameraIntrinsics{}, err
	}

	for i := 0; i < count; i++ {
		sp := C.rs2_get_stream_profile(list, C.int(i), &e)
		if err := rsErr(e); err != nil {
			return transform.PinholeCameraIntrinsics{}, err
		}
		var s C.rs2_stream
		var format C.rs2_format
		var index, uid, framerate C.int
		C.rs2_get_stream_profile_data(sp, &s, &format, &index, &uid, &framerate, &e)
		if err := rsErr(e); err != nil {
			return transform.PinholeCameraIntrinsics{}, err
		}
		if s != target {
			continue
		}

		var intr C.rs2_intrinsics
		C.rs2_get_video_stream_intrinsics(sp, &intr, &e)
		if err := rsErr(e); err != nil {
			return transform.PinholeCameraIntrinsics{}, err
		}
		return transform.PinholeCameraIntrinsics{
			Width:  int(intr.width),
			Height: int(intr.height),
			Fx:     float64(intr.fx),
			Fy:     float64(intr.fy),
			Ppx:    float64(intr.ppx),
			Ppy:    float64(intr.ppy),
		}, nil
	}
	return transform.PinholeCameraIntrinsics{}, errors.Errorf("no active %s stream", stream)
}

func (p *pipeline) DepthScale() (float64, error) {
	var e *C.rs2_error
	dev := C.rs2_pipeline_profile_get_device(p.profile, &e)
	if err := rsErr(e); err != nil {
		return 0, err
	}
	defer C.rs2_delete_device(dev)

	sensors := C.rs2_query_sensors(dev, &e)
	if err := rsErr(e); err != nil {
		return 0, err
	}
	defer C.rs2_delete_sensor_list(sensors)

	count := int(C.rs2_get_sensors_count(sensors, &e))
	if err := rsErr(e); err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		sensor := C.rs2_create_sensor(sensors, C.int(i), &e)
		if err := rsErr(e); err != nil {
			return 0, err
		}
		isDepth := C.rs2_is_sensor_extendable_to(sensor, C.RS2_EXTENSION_DEPTH_SENSOR, &e)
		if err := rsErr(e); err != nil {
			C.rs2_delete_sensor(sensor)
			return 0, err
		}
		if isDepth == 0 {
			C.rs2_delete_sensor(sensor)
			continue
		}
		scale := C.rs2_get_depth_scale(sensor, &e)
		C.rs2_delete_sensor(sensor)
		if err := rsErr(e); err != nil {
			return 0, err
		}
		return float64(scale), nil
	}
	return 0, errors.New("device has no depth sensor")
}

func (p *pipeline) Info() (camera.DeviceInfo, error) {
	var e *C.rs2_error
	dev := C.rs2_pipeline_profile_get_device(p.profile, &e)
	if err := rsErr(e); err != nil {
		return camera.DeviceInfo{}, err
	}
	defer C.rs2_delete_device(dev)
	return deviceInfo(dev), nil
}

func (p *pipeline) releaseLast() {
	if p.lastFrames != nil {
		C.rs2_release_frame(p.lastFrames)
		p.lastFrames = nil
	}
}

func (p *pipeline) Stop() error {
	if p.stopped {
		return nil
	}
	p.stopped = true
	p.releaseLast()

	var e *C.rs2_error
	if p.alignQueue != nil {
		C.rs2_delete_frame_queue(p.alignQueue)
	}
	if p.align != nil {
		C.rs2_delete_processing_block(p.align)
	}
	if p.profile != nil {
		C.rs2_pipeline_stop(p.pipe, &e)
		C.rs2_delete_pipeline_profile(p.profile)
	}
	if p.pipe != nil {
		C.rs2_delete_pipeline(p.pipe)
	}
	if p.rsCtx != nil {
		C.rs2_delete_context(p.rsCtx)
	}
	return rsErr(e)
}
