package video

import (
	"context"
	"fmt"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"github.com/facebookincubator/go-belt/tool/logger"
	"gocv.io/x/gocv"
)

//Sink receives the result of every processed frame. Publish is called from the loop goroutine and should not block.
type Sink interface {
	Publish(ctx context.Context, result FrameResult) error
}

//SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, result FrameResult) error

func (f SinkFunc) Publish(ctx context.Context, result FrameResult) error {
	return f(ctx, result)
}

//ScoutConfig holds the loop settings
type ScoutConfig struct {
	//Show displays the annotated frames in a window, 'q' or ESC quits
	Show       bool   `mapstructure:"show"`
	WindowName string `mapstructure:"window_name"`
	//Output is an optional video file the annotated frames are written to
	Output      string  `mapstructure:"output"`
	OutputCodec string  `mapstructure:"output_codec"`
	OutputFPS   float64 `mapstructure:"output_fps"`

	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
}

//DefaultScoutConfig returns a headless configuration
func DefaultScoutConfig() ScoutConfig {
	return ScoutConfig{
		WindowName:    "robot-scout",
		OutputCodec:   "MJPG",
		OutputFPS:     30,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 10 * time.Second,
	}
}

func (c ScoutConfig) annotate() bool {
	return c.Show || c.Output != ""
}

//Scout reads frames from a source, detects and classifies the robots in them and hands the results to its sinks
type Scout struct {
	source     *FrameSource
	detector   Detector
	classifier *Classifier
	sinks      []Sink
	cfg        ScoutConfig
}

func NewScout(source *FrameSource, detector Detector, classifier *Classifier, cfg ScoutConfig, sinks ...Sink) *Scout {
	return &Scout{
		source:     source,
		detector:   detector,
		classifier: classifier,
		sinks:      sinks,
		cfg:        cfg,
	}
}

//Run processes frames until the source ends (non live sources), the user quits the window, ctx is cancelled
//or the detector fails. The source must be opened (or at least attempted) by the caller, who also closes it.
func (s *Scout) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	var window *gocv.Window
	if s.cfg.Show {
		window = gocv.NewWindow(s.cfg.WindowName)
		defer window.Close()
	}

	var videoWriter *gocv.VideoWriter
	defer func() {
		if videoWriter != nil {
			videoWriter.Close()
		}
	}()

	var (
		seq           uint64
		failedReads   int
		fps           float64
		lastFrameTime time.Time
	)

	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "Run: stopping after %d frames: %v", seq, ctx.Err())
			return nil
		default:
		}

		if !s.source.ReadFrame(ctx, &frame) {
			if !s.source.Live() {
				logger.Infof(ctx, "Run: source '%s' ended after %d frames", s.source.Descriptor().URL, seq)
				return nil
			}

			failedReads++
			delay := utils.Backoff(failedReads, s.cfg.RetryDelay, s.cfg.MaxRetryDelay)
			logger.Debugf(ctx, "Run: no frame from the live source (attempt %d), retrying in %v", failedReads, delay)
			select {
			case <-ctx.Done():
				continue
			case <-time.After(delay):
			}

			if !s.source.IsOpen() {
				if err := s.source.Open(ctx); err != nil {
					logger.Warnf(ctx, "Run: live source is still unavailable: %v", err)
				}
			}
			continue
		}
		failedReads = 0

		if frame.Empty() {
			continue
		}

		raws, err := s.detector.Detect(ctx, frame)
		if err != nil {
			return fmt.Errorf("Run: detection failed on frame %d: %w", seq+1, err)
		}

		seq++
		result := FrameResult{
			Seq:          seq,
			Timestamp:    time.Now(),
			Width:        frame.Cols(),
			Height:       frame.Rows(),
			Observations: s.classifier.Process(ctx, frame, raws),
			Source:       s.source.Stats(),
		}
		s.publish(ctx, result)

		now := time.Now()
		if !lastFrameTime.IsZero() {
			fps = smoothFPS(fps, now.Sub(lastFrameTime))
		}
		lastFrameTime = now

		if !s.cfg.annotate() {
			continue
		}

		if err := DrawObservations(&frame, result.Observations, s.classifier.Config().Teams); err != nil {
			logger.Warnf(ctx, "Run: %v", err)
		}
		if err := DrawFPS(&frame, fps); err != nil {
			logger.Warnf(ctx, "Run: %v", err)
		}

		if s.cfg.Output != "" {
			if videoWriter == nil {
				videoWriter, err = gocv.VideoWriterFile(s.cfg.Output, s.cfg.OutputCodec, s.cfg.OutputFPS, frame.Cols(), frame.Rows(), true)
				if err != nil {
					return fmt.Errorf("Run: unable to create output video '%s': %w", s.cfg.Output, err)
				}
				logger.Infof(ctx, "Run: writing annotated frames to '%s'", s.cfg.Output)
			}
			if err := videoWriter.Write(frame); err != nil {
				logger.Warnf(ctx, "Run: unable to write frame %d: %v", seq, err)
			}
		}

		if window != nil {
			window.IMShow(frame)
			if utils.InSlice(window.WaitKey(1), utils.QuitKeys) {
				logger.Infof(ctx, "Run: quit requested after %d frames", seq)
				return nil
			}
		}
	}
}

//publish hands result to every sink, a failing sink never stops the loop
func (s *Scout) publish(ctx context.Context, result FrameResult) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, result); err != nil {
			logger.Errorf(ctx, "publish: frame %d: %v", result.Seq, err)
		}
	}
}

//smoothFPS blends the rate of the latest frame into the running value
func smoothFPS(previous float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return previous
	}

	current := 1 / elapsed.Seconds()
	if previous == 0 {
		return current
	}
	return 0.9*previous + 0.1*current
}
