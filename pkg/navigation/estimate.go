// Package navigation turns a detection into distance, direction and the
// sentence spoken to the user.
package navigation

import "math"

// Estimator converts apparent box height into distance, assuming every
// object is about as tall as an adult.
type Estimator struct {
	AverageHeightCM float64
	FrameHeightPX   float64
	StepLengthCM    float64
}

// DefaultEstimator returns the constants the step counts were calibrated with.
func DefaultEstimator() Estimator {
	return Estimator{
		AverageHeightCM: 170,
		FrameHeightPX:   480,
		StepLengthCM:    30,
	}
}

// Usable reports whether a box height can yield a distance.
func (e Estimator) Usable(heightPX float64) bool {
	return heightPX > 0
}

// DistanceCM estimates the distance to an object whose box is heightPX tall.
// It is +Inf for heights that are not Usable.
func (e Estimator) DistanceCM(heightPX float64) float64 {
	if !e.Usable(heightPX) {
		return math.Inf(1)
	}
	return e.AverageHeightCM * e.FrameHeightPX / heightPX
}

// Steps is the distance in steps, never less than one.
func (e Estimator) Steps(heightPX float64) float64 {
	return math.Max(1, e.DistanceCM(heightPX)/e.StepLengthCM)
}

// StepCount is Steps truncated for speech. Only meaningful when Usable.
func (e Estimator) StepCount(heightPX float64) int {
	return int(e.Steps(heightPX))
}

// Direction is where an object sits across the frame.
type Direction int

const (
	Left Direction = iota
	Center
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Classify splits the frame width into thirds. A center exactly on a
// boundary falls into the band to its right.
func Classify(centerX, width float64) Direction {
	switch {
	case centerX < width/3:
		return Left
	case centerX < 2*width/3:
		return Center
	default:
		return Right
	}
}
