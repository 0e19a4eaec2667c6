// Package preview serves a live browser view of the frames being
// recorded: color on the left, colorized depth on the right. It observes
// frame pairs after they are persisted and never blocks the capture loop;
// submitting a frame is a pointer swap, and all rendering happens on the
// stream goroutine.
package preview

import (
	"context"
	"image"
	"image/draw"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/edaniels/gostream"
	"github.com/edaniels/gostream/codec/x264"
	"go.viam.com/utils"

	"github.com/opendepth/rgbdcap/camera"
)

// streamWidth bounds the composite sent to the browser.
const streamWidth = 1280

// depth colorization clamp, raw millimeter units
const (
	depthHardMin = 0
	depthHardMax = 5000
)

// Server streams the latest recorded frame pair.
type Server struct {
	logger golog.Logger
	port   int
	stream gostream.Stream
	server gostream.StandaloneStreamServer
	src    *latestSource
}

// NewServer returns an unstarted preview server on the given port.
func NewServer(port int, logger golog.Logger) (*Server, error) {
	stream, err := gostream.NewStream(x264.DefaultStreamConfig)
	if err != nil {
		return nil, err
	}
	server, err := gostream.NewStandaloneStreamServer(port, logger, stream)
	if err != nil {
		return nil, err
	}
	return &Server{
		logger: logger,
		port:   port,
		stream: stream,
		server: server,
		src:    &latestSource{},
	}, nil
}

// Start begins serving; rendering runs until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return err
	}
	utils.PanicCapturingGo(func() {
		gostream.StreamSource(ctx, s.src, s.stream)
	})
	s.logger.Infof("live preview available on port %d", s.port)
	return nil
}

// Submit replaces the frame pair being displayed. The pair's images are
// owned copies that the pipeline no longer mutates, so they are shared,
// not copied.
func (s *Server) Submit(pair *camera.FramePair) {
	s.src.set(pair)
}

// Stop shuts the stream server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Stop(ctx)
}

// latestSource is a gostream image source that renders whatever pair was
// submitted last.
type latestSource struct {
	mu   sync.Mutex
	pair *camera.FramePair
}

func (l *latestSource) set(pair *camera.FramePair) {
	l.mu.Lock()
	l.pair = pair
	l.mu.Unlock()
}

func (l *latestSource) Next(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	l.mu.Lock()
	pair := l.pair
	l.mu.Unlock()

	if pair == nil {
		// nothing recorded yet
		return image.NewRGBA(image.Rect(0, 0, 64, 48)), func() {}, nil
	}
	return composite(pair), func() {}, nil
}

func (l *latestSource) Close() error {
	return nil
}

// composite renders color and colorized depth side by side, downscaled
// for streaming.
func composite(pair *camera.FramePair) image.Image {
	colorImg := pair.Color
	depthImg := pair.Depth.ToPrettyPicture(depthHardMin, depthHardMax)

	w := colorImg.Width() + pair.Depth.Width()
	h := colorImg.Height()
	if dh := pair.Depth.Height(); dh > h {
		h = dh
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, colorImg.Bounds(), colorImg, image.Point{}, draw.Src)
	draw.Draw(out, depthImg.Bounds().Add(image.Point{X: colorImg.Width()}), depthImg, image.Point{}, draw.Src)

	if w <= streamWidth {
		return out
	}
	return imaging.Resize(out, streamWidth, 0, imaging.NearestNeighbor)
}
