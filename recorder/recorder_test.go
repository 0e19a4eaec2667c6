package recorder_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/recorder"
	"github.com/opendepth/rgbdcap/rimage"
)

func newFixedRecorder(t *testing.T, at time.Time) *recorder.Recorder {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(at)
	return recorder.NewWithClock(golog.NewTestLogger(t), mock)
}

func TestCreateSessionDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sessions")
	rec := newFixedRecorder(t, time.Date(2025, 11, 10, 1, 54, 30, 0, time.Local))

	sessionDir, err := rec.CreateSessionDirectory(base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sessionDir, test.ShouldEqual, filepath.Join(base, "session_20251110_015430"))

	for _, sub := range []string{"rgb", "depth"} {
		info, err := os.Stat(filepath.Join(sessionDir, sub))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.IsDir(), test.ShouldBeTrue)
	}
}

func TestCreateSessionDirectorySameSecondReuses(t *testing.T) {
	base := t.TempDir()
	rec := newFixedRecorder(t, time.Date(2025, 11, 10, 1, 54, 30, 0, time.Local))

	first, err := rec.CreateSessionDirectory(base)
	test.That(t, err, test.ShouldBeNil)
	// known limitation: a second session in the same second reuses the
	// directory rather than failing
	second, err := rec.CreateSessionDirectory(base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldEqual, first)
}

func fixedColor() *rimage.Image {
	img := rimage.NewImage(camera.ColorWidth, camera.ColorHeight)
	img.SetXY(100, 100, 1, 2, 3)
	img.SetXY(camera.ColorWidth-1, camera.ColorHeight-1, 200, 100, 50)
	return img
}

func fixedDepth() *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(camera.ColorWidth, camera.ColorHeight)
	dm.Set(100, 100, 1234)
	dm.Set(camera.ColorWidth-1, camera.ColorHeight-1, 4321)
	return dm
}

func TestSaveFramePairRoundTrip(t *testing.T) {
	rec := recorder.New(golog.NewTestLogger(t))
	sessionDir, err := rec.CreateSessionDirectory(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	paths, err := rec.SaveFramePair(0, fixedColor(), fixedDepth(), sessionDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, paths.RGB, test.ShouldEqual, filepath.Join(sessionDir, "rgb", "frame_000000_rgb.png"))
	test.That(t, paths.Depth, test.ShouldEqual, filepath.Join(sessionDir, "depth", "frame_000000_depth.npy"))

	img, err := rimage.ReadImageFromFile(paths.RGB)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Width(), test.ShouldEqual, camera.ColorWidth)
	test.That(t, img.Height(), test.ShouldEqual, camera.ColorHeight)
	r, g, b := img.GetXY(100, 100)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{1, 2, 3})

	dm, err := rimage.ParseNPYDepthMap(paths.Depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, camera.ColorWidth)
	test.That(t, dm.Height(), test.ShouldEqual, camera.ColorHeight)
	test.That(t, dm.GetDepth(100, 100), test.ShouldEqual, uint16(1234))

	// zero-padded 6-digit indices keep lexical order
	paths, err = rec.SaveFramePair(12345, fixedColor(), fixedDepth(), sessionDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(paths.RGB), test.ShouldEqual, "frame_012345_rgb.png")
	test.That(t, filepath.Base(paths.Depth), test.ShouldEqual, "frame_012345_depth.npy")
}

func TestSaveFramePairValidation(t *testing.T) {
	rec := recorder.New(golog.NewTestLogger(t))
	sessionDir, err := rec.CreateSessionDirectory(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		name  string
		color *rimage.Image
		depth *rimage.DepthMap
	}{
		{"nil color", nil, fixedDepth()},
		{"empty color", rimage.NewImage(0, 0), fixedDepth()},
		{"wrong color shape", rimage.NewImage(640, 480), fixedDepth()},
		{"nil depth", fixedColor(), nil},
		{"empty depth", fixedColor(), rimage.NewEmptyDepthMap(0, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rec.SaveFramePair(0, tc.color, tc.depth, sessionDir)
			test.That(t, errors.Is(err, recorder.ErrValidation), test.ShouldBeTrue)
		})
	}
}

func TestSaveFramePairWriteFailure(t *testing.T) {
	rec := recorder.New(golog.NewTestLogger(t))
	// session dir with no rgb/depth subdirectories
	missing := filepath.Join(t.TempDir(), "no_such_session")
	_, err := rec.SaveFramePair(0, fixedColor(), fixedDepth(), missing)
	test.That(t, errors.Is(err, recorder.ErrIO), test.ShouldBeTrue)
}

func TestSaveMetadataRoundTrip(t *testing.T) {
	rec := recorder.New(golog.NewTestLogger(t))
	sessionDir, err := rec.CreateSessionDirectory(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	scale := 0.001
	md := recorder.Metadata{
		SessionStart: time.Date(2025, 11, 10, 1, 54, 30, 0, time.UTC),
		SessionEnd:   time.Date(2025, 11, 10, 1, 59, 1, 0, time.UTC),
		DeviceIndex:  0,
		CameraInfo: camera.DeviceInfo{
			Name:            "Cam A",
			Serial:          "aaa111",
			FirmwareVersion: "5.12.5",
			ProductID:       "0B5C",
		},
		LogLevel:       "INFO",
		PreviewEnabled: true,
		FrameCount:     150,
		DepthScale:     &scale,
	}
	test.That(t, rec.SaveMetadata(sessionDir, md), test.ShouldBeNil)

	data, err := os.ReadFile(filepath.Join(sessionDir, "metadata.json"))
	test.That(t, err, test.ShouldBeNil)

	var back recorder.Metadata
	test.That(t, json.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, back.SessionStart.Equal(md.SessionStart), test.ShouldBeTrue)
	test.That(t, back.SessionEnd.Equal(md.SessionEnd), test.ShouldBeTrue)
	test.That(t, back.CameraInfo, test.ShouldResemble, md.CameraInfo)
	test.That(t, back.FrameCount, test.ShouldEqual, 150)
	test.That(t, back.LogLevel, test.ShouldEqual, "INFO")
	test.That(t, back.PreviewEnabled, test.ShouldBeTrue)
	test.That(t, *back.DepthScale, test.ShouldEqual, scale)

	// the manifest uses the documented field names
	var fields map[string]interface{}
	test.That(t, json.Unmarshal(data, &fields), test.ShouldBeNil)
	for _, key := range []string{
		"session_start", "session_end", "device_index", "camera_info",
		"log_level", "preview_enabled", "frame_count", "depth_scale",
	} {
		_, ok := fields[key]
		test.That(t, ok, test.ShouldBeTrue)
	}
}

func TestSaveMetadataOmitsUnknownDepthScale(t *testing.T) {
	rec := recorder.New(golog.NewTestLogger(t))
	sessionDir, err := rec.CreateSessionDirectory(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, rec.SaveMetadata(sessionDir, recorder.Metadata{FrameCount: 3}), test.ShouldBeNil)

	data, err := os.ReadFile(filepath.Join(sessionDir, "metadata.json"))
	test.That(t, err, test.ShouldBeNil)

	var fields map[string]interface{}
	test.That(t, json.Unmarshal(data, &fields), test.ShouldBeNil)
	_, ok := fields["depth_scale"]
	test.That(t, ok, test.ShouldBeFalse)
}
