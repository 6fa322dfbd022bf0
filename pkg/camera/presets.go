package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	PresetNight   = "night"
	PresetBright  = "bright"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		Preset720p:    HD720Config(),
		PresetNight:   NightModeConfig(),
		PresetBright:  BrightModeConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, Preset720p, PresetNight, PresetBright}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config trades latency on the client for a sharper picture.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Framerate = 10
	return cfg
}

// NightModeConfig returns configuration optimized for low light.
func NightModeConfig() Config {
	cfg := DefaultConfig()
	cfg.ExposureMode = "long"
	cfg.ExposureValue = 1.0
	return cfg
}

// BrightModeConfig keeps highlights from blowing out outdoors.
func BrightModeConfig() Config {
	cfg := DefaultConfig()
	cfg.ExposureMode = "short"
	cfg.ExposureValue = -0.5
	return cfg
}
