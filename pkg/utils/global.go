package utils

import "image/color"

//DefaultMinArea is the minimum bounding box area (in pixels) of a detection to be considered a robot.
//Smaller boxes are usually partial detections, e.g. a bumper or a head.
const DefaultMinArea = 500

//DefaultROIHeightFraction is the share of the bounding box height, measured from its bottom edge, sampled for the team color vote
const DefaultROIHeightFraction = 0.35

//BestQuality is the quality label stream resolvers use for the highest available quality
const BestQuality = "best"

//PreferredQualities is the order in which resolved stream qualities are picked before falling back to the first one available
var PreferredQualities = []string{BestQuality, "720p"}

//TeamAClass is the detector class which is reinterpreted as team A when the color vote is inconclusive
const TeamAClass = 0

//TeamAColor is the overlay color of team A (blue alliance)
var TeamAColor = color.RGBA{0, 0, 255, 0}

//TeamBColor is the overlay color of team B (red alliance)
var TeamBColor = color.RGBA{255, 0, 0, 0}

//FPSColor is the color of the frame rate counter drawn on the top left corner
var FPSColor = color.RGBA{255, 255, 0, 0}

//QuitKeys are the keys which stop the display loop ('q' and ESC)
var QuitKeys = []int{'q', 27}
