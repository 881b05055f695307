package video

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

//fakeCapture serves frames copies of image (or nothing when image is empty) and then fails every read
type fakeCapture struct {
	image  gocv.Mat
	frames int
	opened bool

	reads  int
	closed int
}

func (c *fakeCapture) Read(frame *gocv.Mat) bool {
	c.reads++
	if c.closed > 0 || c.frames <= 0 {
		return false
	}
	c.frames--
	if !c.image.Empty() {
		c.image.CopyTo(frame)
	}
	return true
}

func (c *fakeCapture) IsOpened() bool {
	return c.opened
}

func (c *fakeCapture) Close() error {
	c.closed++
	return nil
}

//fakeOpener hands out its captures in order, failing when they run out
type fakeOpener struct {
	mutex    sync.Mutex
	captures []*fakeCapture
	err      error
	urls     []string
}

func (o *fakeOpener) open(url string) (Capture, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.urls = append(o.urls, url)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.captures) == 0 {
		return nil, errors.New("connection refused")
	}
	capture := o.captures[0]
	o.captures = o.captures[1:]
	return capture, nil
}

func (o *fakeOpener) openedURLs() []string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]string(nil), o.urls...)
}

//countingResolver returns streams and counts its calls
type countingResolver struct {
	streams Streams
	err     error
	calls   int
}

func (r *countingResolver) Resolve(_ context.Context, _ string) (Streams, error) {
	r.calls++
	return r.streams, r.err
}

//fakeDetector returns the same detections for every frame, or err
type fakeDetector struct {
	raws  []RawObservation
	err   error
	calls int
}

func (d *fakeDetector) Detect(_ context.Context, _ gocv.Mat) ([]RawObservation, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.raws, nil
}

//collectingSink keeps every published result
type collectingSink struct {
	results []FrameResult
	err     error
}

func (s *collectingSink) Publish(_ context.Context, result FrameResult) error {
	s.results = append(s.results, result)
	return s.err
}
