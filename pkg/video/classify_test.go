package video

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	blue    = color.RGBA{0, 0, 255, 0}
	red     = color.RGBA{255, 0, 0, 0}
	green   = color.RGBA{0, 255, 0, 0}
	//crimson is on the other side of the hue wraparound: H ~173 in OpenCV's 0-180 scale
	crimson = color.RGBA{255, 0, 60, 0}
)

//newFrame returns a 640x480 frame filled with background
func newFrame(t *testing.T, background color.RGBA) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(background.B), float64(background.G), float64(background.R), 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func fill(t *testing.T, frame *gocv.Mat, rect image.Rectangle, c color.RGBA) {
	t.Helper()
	require.NoError(t, gocv.Rectangle(frame, rect, c, -1))
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultClassifierConfig())
	require.NoError(t, err)
	return c
}

func raw(x1, y1, x2, y2 float64, class DetectorClass, track TrackID) RawObservation {
	return RawObservation{Box: Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Class: class, Confidence: 0.9, Track: track}
}

func TestProcessEmpty(t *testing.T) {
	frame := newFrame(t, green)
	c := newTestClassifier(t)

	result := c.Process(context.Background(), frame, nil)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestProcessGeometricFilter(t *testing.T) {
	frame := newFrame(t, green)
	c := newTestClassifier(t)

	raws := []RawObservation{
		raw(10, 10, 12, 12, 0, Track(1)),       //area 4
		raw(100, 100, 110, 140, 0, Track(2)),   //area 400
		raw(-5, 100, 100, 200, 0, Track(3)),    //left of the frame
		raw(600, 100, 641, 200, 0, Track(4)),   //right of the frame
		raw(100, -1, 200, 100, 0, Track(5)),    //above the frame
		raw(100, 400, 200, 480.5, 0, Track(6)), //below the frame
		raw(200, 300, 100, 100, 0, Track(7)),   //inverted
		raw(100, math.NaN(), 200, 300, 0, Track(9)),
		raw(math.NaN(), 100, 200, 300, 0, Track(10)),
		raw(100, 100, math.NaN(), 300, 0, Track(11)),
		raw(100, 100, 200, math.NaN(), 0, Track(12)),
		raw(100, 100, math.Inf(1), 300, 0, Track(13)),
		raw(math.Inf(-1), 100, 200, 300, 0, Track(14)),
		raw(0, 0, 640, 480, 1, Track(8)), //whole frame is fine
		raw(100, 100, 200, 300, 0, PendingTrack),
	}

	result := c.Process(context.Background(), frame, raws)
	require.Len(t, result, 2)
	assert.Equal(t, Track(8), result[0].Track)
	assert.Equal(t, image.Rect(0, 0, 640, 480), result[0].Box)
	assert.Equal(t, PendingTrack, result[1].Track)
	assert.Equal(t, image.Rect(100, 100, 200, 300), result[1].Box)
	assert.Equal(t, 0.9, result[1].Confidence)
}

func TestRegionOfInterest(t *testing.T) {
	box := image.Rect(100, 100, 200, 300)
	assert.Equal(t, image.Rect(100, 230, 200, 300), RegionOfInterest(box, 0.35))
	assert.Equal(t, box, RegionOfInterest(box, 1))
	assert.Equal(t, box, RegionOfInterest(box, 1.5), "never above the top edge")
	assert.True(t, RegionOfInterest(box, 0).Empty())
	assert.True(t, RegionOfInterest(image.Rect(10, 10, 60, 12), 0.35).Empty())
}

func TestClassifyBlueBumpers(t *testing.T) {
	frame := newFrame(t, green)
	fill(t, &frame, image.Rect(100, 100, 200, 300), red)  //red superstructure
	fill(t, &frame, image.Rect(100, 240, 200, 300), blue) //blue bumpers, inside the bottom 35%
	c := newTestClassifier(t)

	//detector class 1 would fall back to team B: the colors must decide
	result := c.Process(context.Background(), frame, []RawObservation{raw(100, 100, 200, 300, 1, Track(4))})
	require.Len(t, result, 1)
	assert.Equal(t, TeamA, result[0].Team)
	assert.Equal(t, Track(4), result[0].Track)
}

func TestClassifyRedBumpers(t *testing.T) {
	frame := newFrame(t, green)
	fill(t, &frame, image.Rect(300, 100, 400, 300), blue)
	fill(t, &frame, image.Rect(300, 240, 400, 300), red)
	c := newTestClassifier(t)

	result := c.Process(context.Background(), frame, []RawObservation{raw(300, 100, 400, 300, 0, PendingTrack)})
	require.Len(t, result, 1)
	assert.Equal(t, TeamB, result[0].Team)
}

func TestClassifyWrappedRedHue(t *testing.T) {
	frame := newFrame(t, green)
	fill(t, &frame, image.Rect(100, 240, 200, 300), crimson)
	c := newTestClassifier(t)

	//class 0 would fall back to team A
	result := c.Process(context.Background(), frame, []RawObservation{raw(100, 100, 200, 300, 0, Track(2))})
	require.Len(t, result, 1)
	assert.Equal(t, TeamB, result[0].Team)
}

func TestCountPixelsUnionOfRanges(t *testing.T) {
	frame := newFrame(t, green)
	fill(t, &frame, image.Rect(0, 0, 10, 10), red)      //first range only
	fill(t, &frame, image.Rect(10, 0, 30, 10), crimson) //second range only

	hsv := gocv.NewMat()
	defer hsv.Close()
	require.NoError(t, gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV))

	band := DefaultTeamColorProfile().B
	require.Len(t, band.Ranges, 2)

	count, err := band.countPixels(hsv)
	require.NoError(t, err)
	assert.Equal(t, 100+200, count)

	wrappedOnly := ColorBand{Name: "red", Ranges: band.Ranges[1:]}
	count, err = wrappedOnly.countPixels(hsv)
	require.NoError(t, err)
	assert.Equal(t, 200, count)

	//the matching pixels are all in the second range: without the union nothing would be counted
	crimsonOnly := newFrame(t, green)
	fill(t, &crimsonOnly, image.Rect(0, 0, 30, 10), crimson)
	require.NoError(t, gocv.CvtColor(crimsonOnly, &hsv, gocv.ColorBGRToHSV))
	count, err = band.countPixels(hsv)
	require.NoError(t, err)
	assert.Equal(t, 300, count)

	count, err = DefaultTeamColorProfile().A.countPixels(hsv)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClassifyTieFallsBackToDetectorClass(t *testing.T) {
	t.Run("no team color", func(t *testing.T) {
		frame := newFrame(t, green)
		c := newTestClassifier(t)

		result := c.Process(context.Background(), frame, []RawObservation{
			raw(100, 100, 200, 300, 0, Track(1)),
			raw(300, 100, 400, 300, 1, Track(2)),
		})
		require.Len(t, result, 2)
		assert.Equal(t, TeamA, result[0].Team)
		assert.Equal(t, TeamB, result[1].Team)
	})

	t.Run("equal counts", func(t *testing.T) {
		frame := newFrame(t, green)
		fill(t, &frame, image.Rect(100, 200, 150, 300), blue)
		fill(t, &frame, image.Rect(150, 200, 200, 300), red)
		c := newTestClassifier(t)

		result := c.Process(context.Background(), frame, []RawObservation{
			raw(100, 100, 200, 300, 1, Track(1)),
			raw(100, 100, 200, 300, 0, Track(1)),
		})
		require.Len(t, result, 2)
		assert.Equal(t, TeamB, result[0].Team)
		assert.Equal(t, TeamA, result[1].Team)
	})
}

func TestClassifyEmptyROIFallsBackToDetectorClass(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.ROIHeightFraction = 0
	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	frame := newFrame(t, blue)
	result := c.Process(context.Background(), frame, []RawObservation{raw(100, 100, 200, 300, 1, Track(1))})
	require.Len(t, result, 1)
	assert.Equal(t, TeamB, result[0].Team, "an all blue frame must not matter when the region is empty")
}

func TestClassifyIsDeterministic(t *testing.T) {
	frame := newFrame(t, green)
	fill(t, &frame, image.Rect(100, 250, 200, 300), blue)
	fill(t, &frame, image.Rect(100, 280, 130, 300), red)
	c := newTestClassifier(t)

	raws := []RawObservation{raw(100, 100, 200, 300, 1, Track(1))}
	first := c.Process(context.Background(), frame, raws)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Process(context.Background(), frame, raws))
	}
	assert.Equal(t, TeamA, first[0].Team)
}

func TestNewClassifierValidation(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.ROIHeightFraction = 1.2
	_, err := NewClassifier(cfg)
	assert.Error(t, err)

	cfg = DefaultClassifierConfig()
	cfg.MinArea = -1
	_, err = NewClassifier(cfg)
	assert.Error(t, err)

	cfg = DefaultClassifierConfig()
	cfg.Teams.B.Ranges = nil
	_, err = NewClassifier(cfg)
	assert.Error(t, err)

	cfg = DefaultClassifierConfig()
	cfg.Teams.A.Ranges[0].HueMax = 200
	_, err = NewClassifier(cfg)
	assert.Error(t, err)
}
