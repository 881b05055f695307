package video

import (
	"context"
	"fmt"
	"image"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"github.com/facebookincubator/go-belt/tool/logger"
	"gocv.io/x/gocv"
)

//ClassifierConfig holds the fixed thresholds of the observation filter and the team colors
type ClassifierConfig struct {
	MinArea           float64          `mapstructure:"min_area"`
	ROIHeightFraction float64          `mapstructure:"roi_height_fraction"`
	Teams             TeamColorProfile `mapstructure:"teams"`
}

//DefaultClassifierConfig returns the thresholds tuned for FRC match footage
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinArea:           utils.DefaultMinArea,
		ROIHeightFraction: utils.DefaultROIHeightFraction,
		Teams:             DefaultTeamColorProfile(),
	}
}

//Classifier filters raw detections and labels each surviving one with a team based on the colors near the bottom
//of its bounding box (where the bumpers are)
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.MinArea < 0 {
		return nil, fmt.Errorf("NewClassifier: min area must not be negative, got %v", cfg.MinArea)
	}
	if cfg.ROIHeightFraction < 0 || cfg.ROIHeightFraction > 1 {
		return nil, fmt.Errorf("NewClassifier: ROI height fraction must be in [0, 1], got %v", cfg.ROIHeightFraction)
	}
	if err := cfg.Teams.Validate(); err != nil {
		return nil, fmt.Errorf("NewClassifier: %w", err)
	}

	return &Classifier{cfg: cfg}, nil
}

func (c *Classifier) Config() ClassifierConfig {
	return c.cfg
}

//Process returns a classified observation for every raw observation that passes the geometric filter, in input order.
//It never fails: when the colors can not decide, the detector class is used as the team.
func (c *Classifier) Process(ctx context.Context, frame gocv.Mat, raws []RawObservation) []Observation {
	result := make([]Observation, 0, len(raws))
	if len(raws) == 0 {
		return result
	}

	width, height := frame.Cols(), frame.Rows()
	for _, raw := range raws {
		if !c.isValid(raw.Box, width, height) {
			logger.Tracef(ctx, "Process: dropping %+v (frame %dx%d)", raw.Box, width, height)
			continue
		}

		box := raw.Box.Rect()
		result = append(result, Observation{
			Box:        box,
			Class:      raw.Class,
			Confidence: raw.Confidence,
			Team:       c.classify(ctx, frame, RegionOfInterest(box, c.cfg.ROIHeightFraction), raw.Class),
			Track:      raw.Track,
		})
	}

	return result
}

//isValid rejects boxes that are too small (or inverted) and boxes reaching outside the frame.
//Comparisons are written so that NaN coordinates fail them.
func (c *Classifier) isValid(box Box, width, height int) bool {
	w, h := float64(width), float64(height)
	for _, x := range []float64{box.X1, box.X2} {
		if !(x >= 0 && x <= w) {
			return false
		}
	}
	for _, y := range []float64{box.Y1, box.Y2} {
		if !(y >= 0 && y <= h) {
			return false
		}
	}

	if !(box.X2 > box.X1 && box.Y2 > box.Y1) {
		return false
	}

	return box.Area() >= c.cfg.MinArea
}

//RegionOfInterest returns the bottom part of given box, heightFraction of its height, never above its top edge
func RegionOfInterest(box image.Rectangle, heightFraction float64) image.Rectangle {
	roiHeight := int(float64(box.Dy()) * heightFraction)

	top := box.Max.Y - roiHeight
	if top < box.Min.Y {
		top = box.Min.Y
	}

	return image.Rect(box.Min.X, top, box.Max.X, box.Max.Y)
}

//classify runs the color vote on roi. Ties, empty regions and OpenCV errors fall back to the detector class.
func (c *Classifier) classify(ctx context.Context, frame gocv.Mat, roi image.Rectangle, class DetectorClass) TeamLabel {
	fallback := TeamFromClass(class)
	if roi.Empty() {
		return fallback
	}

	teamA, teamB, err := c.vote(frame, roi)
	if err != nil {
		logger.Warnf(ctx, "classify: color vote on %v failed, using detector class %d: %v", roi, class, err)
		return fallback
	}

	switch {
	case teamA > teamB:
		return TeamA
	case teamB > teamA:
		return TeamB
	default:
		return fallback
	}
}

//vote counts the pixels of roi inside each team's color band
func (c *Classifier) vote(frame gocv.Mat, roi image.Rectangle) (int, int, error) {
	region := frame.Region(roi)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV); err != nil {
		return 0, 0, fmt.Errorf("unable to convert to HSV: %w", err)
	}

	teamA, err := c.cfg.Teams.A.countPixels(hsv)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to count team %s pixels: %w", c.cfg.Teams.A.Name, err)
	}

	teamB, err := c.cfg.Teams.B.countPixels(hsv)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to count team %s pixels: %w", c.cfg.Teams.B.Name, err)
	}

	return teamA, teamB, nil
}
