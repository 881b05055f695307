package video

import (
	"fmt"
	"image"
	"image/color"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
	"gocv.io/x/gocv"
)

var whiteRGB = color.RGBA{255, 255, 255, 0}

//TeamColor is the overlay color of given team
func TeamColor(team TeamLabel) color.RGBA {
	if team == TeamA {
		return utils.TeamAColor
	}
	return utils.TeamBColor
}

//observationLabel is written above the bounding box, e.g. "blue 3 0.87" ("?" for a pending track)
func observationLabel(obs Observation, profile TeamColorProfile) string {
	return fmt.Sprintf("%s %s %.2f", profile.Band(obs.Team).Name, obs.Track, obs.Confidence)
}

//DrawObservations plots every observation's bounding box with its team color and writes above it the team, track and confidence
func DrawObservations(frame *gocv.Mat, observations []Observation, profile TeamColorProfile) error {
	for _, obs := range observations {
		plotColor := TeamColor(obs.Team)
		if err := gocv.Rectangle(frame, obs.Box, plotColor, 3); err != nil {
			return fmt.Errorf("DrawObservations: unable to draw bounding box: %w", err)
		}

		text := observationLabel(obs, profile)
		textSize := gocv.GetTextSize(text, gocv.FontHersheyPlain, 1, 2)

		//label sits above the box, or inside it when the box touches the top of the frame
		startPoint := image.Pt(obs.Box.Min.X, obs.Box.Min.Y-5)
		if startPoint.Y-textSize.Y < 0 {
			startPoint.Y = obs.Box.Min.Y + textSize.Y + 5
		}

		textBackgroundRect := image.Rect(startPoint.X, startPoint.Y-textSize.Y-5, startPoint.X+textSize.X+4, startPoint.Y+5)
		if err := gocv.Rectangle(frame, textBackgroundRect, plotColor, -1); err != nil { //thickness -1 == filled rectangle
			return fmt.Errorf("DrawObservations: unable to draw label background: %w", err)
		}
		if err := gocv.PutText(frame, text, image.Pt(startPoint.X+2, startPoint.Y), gocv.FontHersheyPlain, 1, whiteRGB, 2); err != nil {
			return fmt.Errorf("DrawObservations: unable to write label: %w", err)
		}
	}

	return nil
}

//DrawFPS writes the processing frame rate on the top left corner
func DrawFPS(frame *gocv.Mat, fps float64) error {
	if err := gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30), gocv.FontHersheySimplex, 1, utils.FPSColor, 2); err != nil {
		return fmt.Errorf("DrawFPS: %w", err)
	}
	return nil
}
