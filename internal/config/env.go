package config

import (
	"os"
)

// Environment variables read by ApplyEnv.
const (
	EnvCameraURL = "EYEGUIDE_CAMERA_URL"
	EnvCloudURL  = "EYEGUIDE_CLOUD_URL"
	EnvLanguage  = "EYEGUIDE_LANGUAGE"
	EnvGoogleKey = "GOOGLE_API_KEY"
	EnvLogLevel  = "EYEGUIDE_LOG_LEVEL"
)

// ApplyEnv overrides configuration from environment variables.
// Unset variables leave the current value alone.
func (c *Config) ApplyEnv() {
	c.Client.CameraURL = envOr(EnvCameraURL, c.Client.CameraURL)
	c.Client.CloudURL = envOr(EnvCloudURL, c.Client.CloudURL)
	c.Speech.Language = envOr(EnvLanguage, c.Speech.Language)
	c.Speech.GoogleAPIKey = envOr(EnvGoogleKey, c.Speech.GoogleAPIKey)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
}

// envOr returns the variable's value, or def when it is unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
