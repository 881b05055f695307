package video

import (
	"encoding/json"
	"image"
	"math"
	"strconv"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
)

//SourceDescriptor identifies where frames come from. URL is a stream page/playlist URL when Live, a file path or
//any URL OpenCV can open otherwise.
type SourceDescriptor struct {
	URL  string
	Live bool
}

//DetectorClass is the class id as reported by the detector. Its meaning is defined by the detector's model.
type DetectorClass int

//TeamLabel is the team an observation was classified into
type TeamLabel int

const (
	TeamA TeamLabel = iota
	TeamB
)

func (t TeamLabel) String() string {
	if t == TeamA {
		return "A"
	}
	return "B"
}

func (t TeamLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

//TeamFromClass reinterprets a detector class as a team, used when the color vote can not decide
func TeamFromClass(c DetectorClass) TeamLabel {
	if c == utils.TeamAClass {
		return TeamA
	}
	return TeamB
}

//TrackID is the identity the tracker assigned to an object. Objects the tracker did not lock on yet have a
//pending TrackID.
type TrackID struct {
	id    uint64
	valid bool
}

//PendingTrack is the TrackID of an object without a stable identity yet
var PendingTrack = TrackID{}

//Track returns a valid TrackID
func Track(id uint64) TrackID {
	return TrackID{id: id, valid: true}
}

//Value returns the id and whether it is valid
func (t TrackID) Value() (uint64, bool) {
	return t.id, t.valid
}

func (t TrackID) IsPending() bool {
	return !t.valid
}

func (t TrackID) String() string {
	if !t.valid {
		return "?"
	}
	return strconv.FormatUint(t.id, 10)
}

func (t TrackID) MarshalJSON() ([]byte, error) {
	if !t.valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.id)
}

func (t *TrackID) UnmarshalJSON(b []byte) error {
	var id *uint64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	if id == nil {
		*t = PendingTrack
		return nil
	}
	*t = Track(*id)
	return nil
}

//Box is a bounding box in pixel coordinates as reported by the detector. Nothing guarantees X1 < X2 or Y1 < Y2.
type Box struct {
	X1, Y1, X2, Y2 float64
}

func (b Box) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

//Rect rounds the box coordinates to the nearest pixel
func (b Box) Rect() image.Rectangle {
	return image.Rect(round(b.X1), round(b.Y1), round(b.X2), round(b.Y2))
}

func round(v float64) int {
	return int(math.Round(v))
}

//RawObservation is one detected object in one frame, straight from the detector/tracker
type RawObservation struct {
	Box        Box
	Class      DetectorClass
	Confidence float64
	Track      TrackID
}

//Observation is a RawObservation which passed the geometric filter and got a team label
type Observation struct {
	Box        image.Rectangle `json:"-"`
	Class      DetectorClass   `json:"class"`
	Confidence float64         `json:"confidence"`
	Team       TeamLabel       `json:"team"`
	Track      TrackID         `json:"track_id"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	type observation Observation
	return json.Marshal(struct {
		observation
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	}{
		observation: observation(o),
		X1:          o.Box.Min.X,
		Y1:          o.Box.Min.Y,
		X2:          o.Box.Max.X,
		Y2:          o.Box.Max.Y,
	})
}

//FrameResult is everything computed for a single frame, handed to every Sink
type FrameResult struct {
	Seq          uint64        `json:"seq"`
	Timestamp    time.Time     `json:"timestamp"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Observations []Observation `json:"observations"`
	Source       SourceStats   `json:"source"`
}

//SourceStats describes the state of a FrameSource
type SourceStats struct {
	URL         string `json:"url"`
	Live        bool   `json:"live"`
	Open        bool   `json:"open"`
	Ended       bool   `json:"ended"`
	Frames      uint64 `json:"frames"`
	Opens       uint64 `json:"opens"`
	FailedOpens uint64 `json:"failed_opens"`
	Reconnects  uint64 `json:"reconnects"`
}
