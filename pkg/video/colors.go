package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

//HSVRange is an inclusive box in OpenCV's 8 bit HSV space (hue 0-180, saturation and value 0-255)
type HSVRange struct {
	HueMin int `mapstructure:"hue_min"`
	HueMax int `mapstructure:"hue_max"`
	SatMin int `mapstructure:"sat_min"`
	SatMax int `mapstructure:"sat_max"`
	ValMin int `mapstructure:"val_min"`
	ValMax int `mapstructure:"val_max"`
}

func (r HSVRange) lower() gocv.Scalar {
	return gocv.NewScalar(float64(r.HueMin), float64(r.SatMin), float64(r.ValMin), 0)
}

func (r HSVRange) upper() gocv.Scalar {
	return gocv.NewScalar(float64(r.HueMax), float64(r.SatMax), float64(r.ValMax), 0)
}

func (r HSVRange) validate() error {
	if r.HueMin < 0 || r.HueMax > 180 || r.HueMin > r.HueMax {
		return fmt.Errorf("invalid hue range [%d, %d]", r.HueMin, r.HueMax)
	}
	if r.SatMin < 0 || r.SatMax > 255 || r.SatMin > r.SatMax {
		return fmt.Errorf("invalid saturation range [%d, %d]", r.SatMin, r.SatMax)
	}
	if r.ValMin < 0 || r.ValMax > 255 || r.ValMin > r.ValMax {
		return fmt.Errorf("invalid value range [%d, %d]", r.ValMin, r.ValMax)
	}
	return nil
}

//ColorBand is the set of HSV colors belonging to a team: the union of its ranges.
//A hue wrapping around 180 (red) is expressed as two ranges.
type ColorBand struct {
	Name   string     `mapstructure:"name"`
	Ranges []HSVRange `mapstructure:"ranges"`
}

//TeamColorProfile maps each team to its color band
type TeamColorProfile struct {
	A ColorBand `mapstructure:"a"`
	B ColorBand `mapstructure:"b"`
}

//DefaultTeamColorProfile is blue alliance as team A and red alliance as team B
func DefaultTeamColorProfile() TeamColorProfile {
	return TeamColorProfile{
		A: ColorBand{
			Name: "blue",
			Ranges: []HSVRange{
				{HueMin: 100, HueMax: 130, SatMin: 120, SatMax: 255, ValMin: 70, ValMax: 255},
			},
		},
		B: ColorBand{
			Name: "red",
			Ranges: []HSVRange{
				{HueMin: 0, HueMax: 10, SatMin: 120, SatMax: 255, ValMin: 70, ValMax: 255},
				{HueMin: 170, HueMax: 180, SatMin: 120, SatMax: 255, ValMin: 70, ValMax: 255},
			},
		},
	}
}

//Band returns the color band of given team
func (p TeamColorProfile) Band(team TeamLabel) ColorBand {
	if team == TeamA {
		return p.A
	}
	return p.B
}

//Validate makes sure both teams have at least one well formed range
func (p TeamColorProfile) Validate() error {
	for _, team := range []TeamLabel{TeamA, TeamB} {
		band := p.Band(team)
		if len(band.Ranges) == 0 {
			return fmt.Errorf("team %s (%s) has no color ranges", team, band.Name)
		}
		for i, r := range band.Ranges {
			if err := r.validate(); err != nil {
				return fmt.Errorf("team %s (%s) range #%d: %w", team, band.Name, i, err)
			}
		}
	}
	return nil
}

//countPixels returns how many pixels of given HSV image fall inside the band
func (b ColorBand) countPixels(hsv gocv.Mat) (int, error) {
	if len(b.Ranges) == 0 || hsv.Empty() {
		return 0, nil
	}

	union := gocv.NewMat()
	defer union.Close()
	if err := gocv.InRangeWithScalar(hsv, b.Ranges[0].lower(), b.Ranges[0].upper(), &union); err != nil {
		return 0, err
	}

	mask := gocv.NewMat()
	defer mask.Close()
	for _, r := range b.Ranges[1:] {
		if err := gocv.InRangeWithScalar(hsv, r.lower(), r.upper(), &mask); err != nil {
			return 0, err
		}
		if err := gocv.BitwiseOr(union, mask, &union); err != nil {
			return 0, err
		}
	}

	return gocv.CountNonZero(union), nil
}
