package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"github.com/facebookincubator/go-belt/tool/logger"
	"gocv.io/x/gocv"
)

//Detector finds and tracks objects in a frame. Track identities must persist across successive calls.
type Detector interface {
	Detect(ctx context.Context, frame gocv.Mat) ([]RawObservation, error)
}

//TrackerConfig describes the tracker child process and which of its detections to keep
type TrackerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	//MinConfidence is exclusive: a detection must score above it to be kept
	MinConfidence float64 `mapstructure:"min_confidence"`
	//Classes keeps only detections of these classes, all classes when empty
	Classes []int `mapstructure:"classes"`
}

//TrackerProcess is a Detector backed by a child process (typically a YOLO model in tracking mode).
//
//For every frame the process gets on its standard input a 4 bytes big endian length followed by a JPEG image, and
//must answer on its standard output with one JSON line:
//
//	{"detections": [{"box": [x1, y1, x2, y2], "conf": 0.87, "cls": 0, "id": 12}, ...]}
//
//"id" is null for objects the tracker did not assign an identity to yet. Any other output line (logs, FPS prints)
//is ignored.
type TrackerProcess struct {
	ctx    context.Context
	cfg    TrackerConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	closeOnce sync.Once
	closeErr  error
}

type trackerResponse struct {
	Detections []trackerDetection `json:"detections"`
}

type trackerDetection struct {
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"conf"`
	Class      int        `json:"cls"`
	ID         TrackID    `json:"id"`
}

//StartTracker starts the tracker process. It is stopped by Close (or when ctx is cancelled).
func StartTracker(ctx context.Context, cfg TrackerConfig) (*TrackerProcess, error) {
	if cfg.Command == "" {
		return nil, errors.New("StartTracker: no tracker command configured")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Stderr = newLogWriter(ctx, "tracker")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("StartTracker: unable to get the standard input: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("StartTracker: unable to get the standard output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("StartTracker: unable to start '%s': %w", cfg.Command, err)
	}
	logger.Infof(ctx, "StartTracker: started '%s %s' (pid %d)", cfg.Command, strings.Join(cfg.Args, " "), cmd.Process.Pid)

	t := newTrackerClient(cfg, stdin, stdout)
	t.ctx = ctx
	t.cmd = cmd
	return t, nil
}

func newTrackerClient(cfg TrackerConfig, stdin io.WriteCloser, stdout io.Reader) *TrackerProcess {
	return &TrackerProcess{
		cfg:    cfg,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
	}
}

func (t *TrackerProcess) Detect(ctx context.Context, frame gocv.Mat) ([]RawObservation, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("Detect: unable to encode the frame: %w", err)
	}
	defer buf.Close()

	return t.roundTrip(ctx, buf.GetBytes())
}

//roundTrip sends an encoded frame and waits for its detections
func (t *TrackerProcess) roundTrip(ctx context.Context, image []byte) ([]RawObservation, error) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(image)))
	if _, err := t.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("Detect: unable to send the frame header: %w", err)
	}
	if _, err := t.stdin.Write(image); err != nil {
		return nil, fmt.Errorf("Detect: unable to send the frame: %w", err)
	}

	for {
		line, err := t.stdout.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] == '{' {
			var resp trackerResponse
			if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
				return nil, fmt.Errorf("Detect: unable to parse tracker output '%s': %w", line, jsonErr)
			}
			return t.toObservations(resp.Detections), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("Detect: tracker exited: %w", err)
			}
			return nil, fmt.Errorf("Detect: unable to read tracker output: %w", err)
		}
		if len(line) > 0 { //this is a log print, skip it
			logger.Tracef(ctx, "tracker: %s", line)
		}
	}
}

func (t *TrackerProcess) toObservations(detections []trackerDetection) []RawObservation {
	result := make([]RawObservation, 0, len(detections))
	for _, d := range detections {
		if d.Confidence <= t.cfg.MinConfidence {
			continue
		}
		if len(t.cfg.Classes) > 0 && !utils.InSlice(d.Class, t.cfg.Classes) {
			continue
		}

		result = append(result, RawObservation{
			Box:        Box{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]},
			Class:      DetectorClass(d.Class),
			Confidence: d.Confidence,
			Track:      d.ID,
		})
	}
	return result
}

//Close stops the tracker: its standard input is closed and the process is waited for.
//A process killed because the context of StartTracker was cancelled is a normal stop, not an error.
func (t *TrackerProcess) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.stdin.Close()
		if t.cmd == nil {
			return
		}

		err := t.cmd.Wait()
		switch {
		case err == nil:
		case t.ctx != nil && t.ctx.Err() != nil:
			logger.Debugf(t.ctx, "Close: tracker stopped on cancellation: %v", err)
		case t.closeErr == nil:
			t.closeErr = fmt.Errorf("tracker exited with an error: %w", err)
		}
	})
	return t.closeErr
}

//logWriter forwards every line written to it to the context logger
type logWriter struct {
	ctx    context.Context
	prefix string
	buf    bytes.Buffer
}

func newLogWriter(ctx context.Context, prefix string) *logWriter {
	return &logWriter{ctx: ctx, prefix: prefix}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			w.buf.WriteString(line) //incomplete line, wait for the rest
			return len(p), nil
		}
		logger.Debugf(w.ctx, "%s: %s", w.prefix, strings.TrimRight(line, "\r\n"))
	}
}
