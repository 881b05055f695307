package video

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestObservationLabel(t *testing.T) {
	profile := DefaultTeamColorProfile()

	assert.Equal(t, "blue 3 0.87", observationLabel(Observation{Team: TeamA, Track: Track(3), Confidence: 0.871}, profile))
	assert.Equal(t, "red ? 0.50", observationLabel(Observation{Team: TeamB, Track: PendingTrack, Confidence: 0.5}, profile))
}

func TestDrawObservations(t *testing.T) {
	frame := newFrame(t, green)
	observations := []Observation{
		{Box: image.Rect(100, 100, 200, 300), Team: TeamA, Track: Track(1), Confidence: 0.9},
		{Box: image.Rect(300, 0, 400, 200), Team: TeamB, Track: PendingTrack, Confidence: 0.6},
	}

	require.NoError(t, DrawObservations(&frame, observations, DefaultTeamColorProfile()))
	require.NoError(t, DrawFPS(&frame, 29.7))

	//BGR pixels on the left edge of each box
	assert.Equal(t, []uint8{255, 0, 0}, bgrAt(frame, 100, 200))
	assert.Equal(t, []uint8{0, 0, 255}, bgrAt(frame, 300, 100))
	//inside the boxes nothing is drawn
	assert.Equal(t, []uint8{0, 255, 0}, bgrAt(frame, 150, 200))
}

func bgrAt(frame gocv.Mat, x, y int) []uint8 {
	return []uint8(frame.GetVecbAt(y, x))
}
