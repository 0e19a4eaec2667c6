// Package main records time-aligned color and depth frame pairs from a
// depth camera into a timestamped session directory, with an optional live
// preview stream.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/opendepth/rgbdcap/camera"
	"github.com/opendepth/rgbdcap/camera/fake"
	"github.com/opendepth/rgbdcap/preview"
	"github.com/opendepth/rgbdcap/recorder"
)

var (
	defaultPreviewPort = 5555

	logger = golog.NewDevelopmentLogger("rgbdcap")

	// swapped out in tests
	newDriver = newHardwareDriver
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	DeviceIndex int               `flag:"device-index,default=0,usage=index of the camera to record from"`
	OutputDir   string            `flag:"output-dir,default=recorded_sessions,usage=directory where session folders are created"`
	NoPreview   bool              `flag:"no-preview,usage=disable the live preview stream"`
	PreviewPort utils.NetPortFlag `flag:"preview-port,usage=port for the live preview stream"`
	Fake        bool              `flag:"fake,usage=record from a synthetic camera instead of hardware"`
	Debug       bool              `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.PreviewPort == 0 {
		argsParsed.PreviewPort = utils.NetPortFlag(defaultPreviewPort)
	}

	var driver camera.Driver
	if argsParsed.Fake {
		driver = fake.NewDriver(logger)
	} else {
		var err error
		driver, err = newDriver(logger)
		if err != nil {
			return err
		}
	}

	return runRecord(ctx, argsParsed, driver, logger)
}

func runRecord(ctx context.Context, args Arguments, driver camera.Driver, logger golog.Logger) (err error) {
	logLevel := "INFO"
	if args.Debug {
		logLevel = "DEBUG"
	}
	logger.Infow("starting recording session",
		"device_index", args.DeviceIndex,
		"output_dir", args.OutputDir,
		"preview", !args.NoPreview,
		"log_level", logLevel,
	)

	session := camera.NewSession(driver, logger)
	// connection failure is fatal, before any directory is created
	if err := session.Connect(ctx, args.DeviceIndex); err != nil {
		logger.Errorw("camera initialization failed", "error", err)
		return err
	}
	defer session.Disconnect()

	capturer, err := camera.NewCapturer(session, logger)
	if err != nil {
		return err
	}

	rec := recorder.New(logger)
	sessionDir, err := rec.CreateSessionDirectory(args.OutputDir)
	if err != nil {
		return err
	}
	logger.Infof("recording to session directory: %s", sessionDir)

	md := recorder.Metadata{
		SessionStart:   time.Now().UTC(),
		DeviceIndex:    args.DeviceIndex,
		CameraInfo:     session.CameraInfo(),
		LogLevel:       logLevel,
		PreviewEnabled: !args.NoPreview,
	}

	var pv *preview.Server
	if !args.NoPreview {
		// preview never affects recorded data; failures only disable it
		if pv, err = preview.NewServer(int(args.PreviewPort), logger); err != nil {
			logger.Warnw("preview disabled", "error", err)
			pv = nil
		} else if err := pv.Start(ctx); err != nil {
			logger.Warnw("preview disabled", "error", err)
			pv = nil
		}
	}

	// finalization runs on every exit path: the manifest reflects whatever
	// was actually captured, and disconnect still happens (deferred above)
	defer func() {
		md.SessionEnd = time.Now().UTC()
		md.FrameCount = capturer.FrameCount()
		scale := capturer.DepthScale()
		md.DepthScale = &scale

		if mdErr := rec.SaveMetadata(sessionDir, md); mdErr != nil {
			err = multierr.Combine(err, mdErr)
		}
		if pv != nil {
			if pvErr := pv.Stop(context.Background()); pvErr != nil {
				logger.Warnw("error stopping preview", "error", pvErr)
			}
		}
		logger.Infow("recording session complete", "frames_captured", md.FrameCount)
	}()

	utils.ContextMainReadyFunc(ctx)()

	for {
		// cooperative cancellation between iterations
		if ctx.Err() != nil {
			logger.Info("recording interrupted by user")
			return nil
		}

		pair, err := capturer.CaptureFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("recording interrupted by user")
				return nil
			}
			// per-frame capture failures end the loop gracefully
			logger.Errorw("frame capture error, stopping recording", "error", err)
			return nil
		}

		if _, err := rec.SaveFramePair(pair.Index, pair.Color, pair.Depth, sessionDir); err != nil {
			return err
		}

		if pv != nil {
			pv.Submit(pair)
		}
	}
}
