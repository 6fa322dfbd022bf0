// Package camera runs the capture process on the camera unit and pulls the
// resulting feed on the client.
package camera

import "fmt"

// Config holds the capture parameters passed to the capture binary.
type Config struct {
	// Binary forces a capture program; empty means discover one.
	Binary string `json:"binary"`

	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"`

	// ChunkSize is the stdout read size used by the demuxer.
	ChunkSize int `json:"chunk_size"`

	// ExposureMode controls how the AE algorithm balances shutter/gain.
	// Values: "normal", "short", "long". Only rpicam-vid and libcamera-vid.
	ExposureMode string `json:"exposure_mode"`

	// ExposureValue is EV compensation in stops (-2.0 to +2.0).
	ExposureValue float64 `json:"exposure_value"`

	// Brightness adjustment (-1.0 to +1.0).
	Brightness float64 `json:"brightness"`

	// AfMode controls autofocus behavior.
	// Values: "manual", "auto", "continuous"
	AfMode string `json:"af_mode"`
}

// Sensor limits of the supported camera modules.
const (
	SensorMaxWidth  = 4608
	SensorMaxHeight = 2592
)

// DefaultConfig returns the light 640x480 MJPEG setup at 15 fps.
func DefaultConfig() Config {
	return Config{
		Width:     640,
		Height:    480,
		Framerate: 15,
		ChunkSize: 1024,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > SensorMaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", SensorMaxWidth))
	}
	if c.Height < 120 || c.Height > SensorMaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", SensorMaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.ChunkSize < 1 {
		errors = append(errors, "chunk_size must be positive")
	}

	validExposureModes := map[string]bool{"normal": true, "short": true, "long": true}
	if c.ExposureMode != "" && !validExposureModes[c.ExposureMode] {
		errors = append(errors, "exposure_mode must be normal, short, or long")
	}
	if c.ExposureValue < -2.0 || c.ExposureValue > 2.0 {
		errors = append(errors, "exposure_value must be between -2.0 and 2.0")
	}
	if c.Brightness < -1.0 || c.Brightness > 1.0 {
		errors = append(errors, "brightness must be between -1.0 and 1.0")
	}

	validAfModes := map[string]bool{"manual": true, "auto": true, "continuous": true}
	if c.AfMode != "" && !validAfModes[c.AfMode] {
		errors = append(errors, "af_mode must be manual, auto, or continuous")
	}

	return errors
}
