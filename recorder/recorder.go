// Package recorder persists aligned frame pairs and session metadata to a
// deterministic on-disk layout:
//
//	<base>/session_<YYYYMMDD_HHMMSS>/
//	  rgb/frame_000000_rgb.png ...
//	  depth/frame_000000_depth.npy ...
//	  metadata.json
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/rimage"
)

// Error kinds for persistence failures.
var (
	// ErrValidation means the caller handed over a malformed image; this
	// is a caller bug and is never swallowed.
	ErrValidation = errors.New("invalid frame data")

	// ErrIO means a disk write failed.
	ErrIO = errors.New("write failed")
)

const (
	rgbDirName   = "rgb"
	depthDirName = "depth"
	metadataName = "metadata.json"

	sessionTimeFormat = "20060102_150405"
)

// Metadata is the session manifest, written once after the capture loop
// terminates. DepthScale is nil when unobtainable.
type Metadata struct {
	SessionStart   time.Time         `json:"session_start"`
	SessionEnd     time.Time         `json:"session_end"`
	DeviceIndex    int               `json:"device_index"`
	CameraInfo     camera.DeviceInfo `json:"camera_info"`
	LogLevel       string            `json:"log_level"`
	PreviewEnabled bool              `json:"preview_enabled"`
	FrameCount     int               `json:"frame_count"`
	DepthScale     *float64          `json:"depth_scale,omitempty"`
}

// FramePaths are the files one saved pair produced.
type FramePaths struct {
	RGB   string
	Depth string
}

// Recorder writes frame pairs and manifests. It has no hardware
// dependency.
type Recorder struct {
	logger golog.Logger
	clock  clock.Clock
}

// New returns a recorder using the wall clock.
func New(logger golog.Logger) *Recorder {
	return NewWithClock(logger, clock.New())
}

// NewWithClock returns a recorder with an injected clock; tests use a mock
// to pin session directory names.
func NewWithClock(logger golog.Logger, c clock.Clock) *Recorder {
	return &Recorder{logger: logger, clock: c}
}

// CreateSessionDirectory creates baseDir if absent, then a session
// directory named from the current local timestamp with its rgb/ and
// depth/ subdirectories, and returns the session directory path.
//
// Two sessions starting within the same second get the same name; the
// second reuses the directory. Known limitation, deliberately not
// deduplicated.
func (r *Recorder) CreateSessionDirectory(baseDir string) (string, error) {
	basePath, err := homedir.Expand(baseDir)
	if err != nil {
		return "", errors.Wrapf(err, "cannot expand base directory %q", baseDir)
	}

	sessionName := fmt.Sprintf("session_%s", r.clock.Now().Format(sessionTimeFormat))
	sessionDir := filepath.Join(basePath, sessionName)

	for _, dir := range []string{
		filepath.Join(sessionDir, rgbDirName),
		filepath.Join(sessionDir, depthDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "cannot create %q", dir)
		}
	}

	r.logger.Infof("created session directory: %s", sessionDir)
	return sessionDir, nil
}

// SaveFramePair writes one aligned pair under sessionDir with zero-padded
// 6-digit index filenames so lexical order is frame order. The color image
// must be the fixed 3-channel 8-bit 1280x800 frame; the depth map must be
// a non-empty 2-D 16-bit map. Malformed inputs fail fast with
// ErrValidation; nothing is coerced.
func (r *Recorder) SaveFramePair(
	frameIdx int,
	color *rimage.Image,
	depth *rimage.DepthMap,
	sessionDir string,
) (FramePaths, error) {
	if color == nil || color.Width() == 0 || color.Height() == 0 {
		return FramePaths{}, errors.Wrap(ErrValidation, "color image must be a non-empty HxWx3 8-bit image")
	}
	if color.Width() != camera.ColorWidth || color.Height() != camera.ColorHeight {
		return FramePaths{}, errors.Wrapf(ErrValidation,
			"color image must be %dx%d, got %dx%d",
			camera.ColorWidth, camera.ColorHeight, color.Width(), color.Height())
	}
	if depth == nil || !depth.HasData() {
		return FramePaths{}, errors.Wrap(ErrValidation, "depth map must be a non-empty HxW 16-bit map")
	}

	paths := FramePaths{
		RGB:   filepath.Join(sessionDir, rgbDirName, fmt.Sprintf("frame_%06d_rgb.png", frameIdx)),
		Depth: filepath.Join(sessionDir, depthDirName, fmt.Sprintf("frame_%06d_depth.npy", frameIdx)),
	}

	if err := rimage.WriteImageToFile(paths.RGB, color); err != nil {
		return FramePaths{}, errors.Wrapf(ErrIO, "writing color frame to %q: %v", paths.RGB, err)
	}
	if err := rimage.WriteDepthMapToNPYFile(paths.Depth, depth); err != nil {
		return FramePaths{}, errors.Wrapf(ErrIO, "writing depth frame to %q: %v", paths.Depth, err)
	}

	r.logger.Debugf("saved frame %d: rgb=%s depth=%s",
		frameIdx, filepath.Base(paths.RGB), filepath.Base(paths.Depth))
	return paths, nil
}

// SaveMetadata serializes the manifest as indented JSON to metadata.json
// inside sessionDir.
func (r *Recorder) SaveMetadata(sessionDir string, md Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot serialize session metadata")
	}

	metadataPath := filepath.Join(sessionDir, metadataName)
	if err := os.WriteFile(metadataPath, data, 0o644); err != nil {
		return errors.Wrapf(ErrIO, "writing %q: %v", metadataPath, err)
	}

	r.logger.Infof("saved metadata to %s", metadataPath)
	return nil
}
