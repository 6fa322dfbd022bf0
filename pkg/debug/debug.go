// Package debug provides global debug logging flags
package debug

import "log/slog"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame logs are shown (demuxer, stream writers).
// Use --debug-frames to enable these very verbose logs
var Frames bool

// Log emits a debug line only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		slog.Debug(msg, args...)
	}
}

// FrameLog emits a debug line only if per-frame logging is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		slog.Debug(msg, args...)
	}
}
