// Package detection finds objects in camera frames.
package detection

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrUnavailable is returned when no detection engine could be loaded.
	ErrUnavailable = errors.New("detection: detector unavailable")

	// ErrInvalidImage is returned for input that does not decode as an image.
	ErrInvalidImage = errors.New("detection: invalid image")
)

// Detection is one recognized object, in pixel coordinates of the frame.
type Detection struct {
	Label      string
	ClassID    int
	Box        image.Rectangle
	Confidence float64
}

// Height is the bounding-box height in pixels.
func (d Detection) Height() int {
	return d.Box.Dy()
}

// CenterX is the horizontal center of the bounding box.
func (d Detection) CenterX() float64 {
	return float64(d.Box.Min.X) + float64(d.Box.Dx())/2
}

// Result is the output of one detection pass.
type Result struct {
	// Size is the decoded frame size; direction is relative to Size.X.
	Size       image.Point
	Detections []Detection
}

// Detector is the interface for object detection backends
type Detector interface {
	// Detect finds objects in a JPEG frame.
	Detect(ctx context.Context, jpeg []byte) (Result, error)

	// Close releases resources
	Close() error
}

// Closest picks the detection with the tallest box, taken as the nearest
// object. Ties keep the first one found.
func Closest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Height() > best.Height() {
			best = d
		}
	}
	return best, true
}
