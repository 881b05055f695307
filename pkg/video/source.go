package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"github.com/facebookincubator/go-belt/tool/logger"
	"gocv.io/x/gocv"
)

var (
	//ErrNoStreamAvailable means a live source could not be resolved to any playable URL
	ErrNoStreamAvailable = errors.New("no stream available")
	//ErrOpenFailed means the decoder could not open the (resolved) URL
	ErrOpenFailed = errors.New("unable to open the video source")
)

//Capture is an open decode handle. *gocv.VideoCapture implements it.
type Capture interface {
	Read(frame *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

//CaptureOpener opens a decode handle for given URL or file path
type CaptureOpener func(url string) (Capture, error)

//OpenCapture opens url with OpenCV
func OpenCapture(url string) (Capture, error) {
	capture, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

//SourceOption configures a FrameSource
type SourceOption func(*FrameSource)

//WithResolver sets the resolver used for live sources
func WithResolver(r Resolver) SourceOption {
	return func(s *FrameSource) {
		s.resolver = r
	}
}

//WithCaptureOpener replaces OpenCapture
func WithCaptureOpener(open CaptureOpener) SourceOption {
	return func(s *FrameSource) {
		s.openCapture = open
	}
}

//WithResolveTimeout bounds each stream resolution, zero means no timeout
func WithResolveTimeout(timeout time.Duration) SourceOption {
	return func(s *FrameSource) {
		s.resolveTimeout = timeout
	}
}

//WithPreferredQualities sets the qualities tried (in order) before the first resolved stream
func WithPreferredQualities(qualities ...string) SourceOption {
	return func(s *FrameSource) {
		s.preferred = qualities
	}
}

//FrameSource owns the decode handle of a video source. Live sources are re-resolved and reopened once whenever a
//read fails, file sources simply end.
//
//A FrameSource is not safe for concurrent use: it belongs to the loop reading the frames.
type FrameSource struct {
	descriptor     SourceDescriptor
	resolver       Resolver
	openCapture    CaptureOpener
	resolveTimeout time.Duration
	preferred      []string

	capture Capture
	url     string
	ended   bool
	stats   SourceStats
}

//NewFrameSource creates a closed FrameSource, call Open to start it
func NewFrameSource(descriptor SourceDescriptor, opts ...SourceOption) *FrameSource {
	s := &FrameSource{
		descriptor:  descriptor,
		resolver:    StaticResolver{},
		openCapture: OpenCapture,
		preferred:   utils.PreferredQualities,
		url:         descriptor.URL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FrameSource) Descriptor() SourceDescriptor {
	return s.descriptor
}

func (s *FrameSource) Live() bool {
	return s.descriptor.Live
}

//URL is the URL the handle is (or was last) opened against
func (s *FrameSource) URL() string {
	return s.url
}

func (s *FrameSource) IsOpen() bool {
	return s.capture != nil
}

//Ended reports whether a non live source reached its end
func (s *FrameSource) Ended() bool {
	return s.ended
}

func (s *FrameSource) Stats() SourceStats {
	stats := s.stats
	stats.URL = s.url
	stats.Live = s.descriptor.Live
	stats.Open = s.IsOpen()
	stats.Ended = s.ended
	return stats
}

//Open (re)opens the handle, resolving the source first when it is live. The previous handle, if any, is released
//before anything else. On error the source stays closed and every read fails until Open succeeds.
func (s *FrameSource) Open(ctx context.Context) error {
	if err := s.Close(); err != nil {
		logger.Warnf(ctx, "Open: unable to release the previous handle of '%s': %v", s.url, err)
	}
	s.ended = false

	url := s.descriptor.URL
	if s.descriptor.Live {
		logger.Infof(ctx, "Open: resolving live stream '%s'", s.descriptor.URL)
		stream, err := s.resolve(ctx)
		if err != nil {
			s.stats.FailedOpens++
			logger.Errorf(ctx, "Open: %v", err)
			return err
		}
		logger.Debugf(ctx, "Open: '%s' resolved to quality '%s'", s.descriptor.URL, stream.Quality)
		url = stream.URL
	}
	s.url = url

	capture, err := s.openCapture(url)
	if err == nil && (capture == nil || !capture.IsOpened()) {
		err = errors.New("the handle is not opened")
	}
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		s.stats.FailedOpens++
		err = fmt.Errorf("%w '%s': %w", ErrOpenFailed, url, err)
		logger.Errorf(ctx, "Open: %v", err)
		return err
	}

	s.capture = capture
	s.stats.Opens++
	logger.Infof(ctx, "Open: opened '%s'", s.descriptor.URL)
	return nil
}

func (s *FrameSource) resolve(ctx context.Context) (Stream, error) {
	if s.resolver == nil {
		return Stream{}, fmt.Errorf("%w: no resolver configured for live source '%s'", ErrNoStreamAvailable, s.descriptor.URL)
	}

	if s.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.resolveTimeout)
		defer cancel()
	}

	streams, err := s.resolver.Resolve(ctx, s.descriptor.URL)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: unable to resolve '%s': %w", ErrNoStreamAvailable, s.descriptor.URL, err)
	}

	stream, ok := SelectStream(streams, s.preferred...)
	if !ok {
		return Stream{}, fmt.Errorf("%w: '%s' resolved to no playable stream", ErrNoStreamAvailable, s.descriptor.URL)
	}

	return stream, nil
}

//ReadFrame reads the next frame into frame. A failed read on a live source triggers exactly one reconnection
//(Open followed by a single read), a failed read on a file source ends it for good.
func (s *FrameSource) ReadFrame(ctx context.Context, frame *gocv.Mat) bool {
	if s.capture == nil || s.ended {
		return false
	}

	if s.capture.Read(frame) {
		s.stats.Frames++
		return true
	}

	if !s.descriptor.Live {
		logger.Infof(ctx, "ReadFrame: end of '%s'", s.url)
		s.ended = true
		return false
	}

	logger.Warnf(ctx, "ReadFrame: reading '%s' failed, reconnecting", s.descriptor.URL)
	s.stats.Reconnects++
	if err := s.Open(ctx); err != nil {
		return false
	}

	if !s.capture.Read(frame) {
		logger.Warnf(ctx, "ReadFrame: no frame from '%s' right after reconnecting", s.descriptor.URL)
		return false
	}

	s.stats.Frames++
	return true
}

//Close releases the handle. It is safe to call it multiple times.
func (s *FrameSource) Close() error {
	if s.capture == nil {
		return nil
	}

	capture := s.capture
	s.capture = nil
	return capture.Close()
}
