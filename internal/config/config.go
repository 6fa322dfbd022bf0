// Package config holds the runtime configuration shared by the eyeguide commands.
//
// Values come from Default, then an optional file (Load), then environment
// overrides (ApplyEnv), then command-line flags. Nothing is reconfigured at runtime.
package config

import "time"

// Config is the root configuration.
type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level" toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Camera     CameraConfig     `json:"camera" yaml:"camera" toml:"camera"`
	Stream     StreamConfig     `json:"stream" yaml:"stream" toml:"stream"`
	Client     ClientConfig     `json:"client" yaml:"client" toml:"client"`
	Detection  DetectionConfig  `json:"detection" yaml:"detection" toml:"detection"`
	Navigation NavigationConfig `json:"navigation" yaml:"navigation" toml:"navigation"`
	Speech     SpeechConfig     `json:"speech" yaml:"speech" toml:"speech"`
	Detector   DetectorConfig   `json:"detector" yaml:"detector" toml:"detector"`
}

// CameraConfig configures the capture subprocess on the camera unit.
type CameraConfig struct {
	// Command forces a capture binary; empty means discover one.
	Command   string `json:"command" yaml:"command" toml:"command"`
	Width     int    `json:"width" yaml:"width" toml:"width" validate:"min=160,max=4608"`
	Height    int    `json:"height" yaml:"height" toml:"height" validate:"min=120,max=2592"`
	Framerate int    `json:"framerate" yaml:"framerate" toml:"framerate" validate:"min=1,max=120"`
	ChunkSize int    `json:"chunk_size" yaml:"chunk_size" toml:"chunk_size" validate:"min=1"`
}

// StreamConfig configures the frame distribution server.
type StreamConfig struct {
	Addr         string        `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval" validate:"gt=0"`
}

// ClientConfig configures the navigation client.
type ClientConfig struct {
	CameraURL    string        `json:"camera_url" yaml:"camera_url" toml:"camera_url" validate:"required,url"`
	CloudURL     string        `json:"cloud_url" yaml:"cloud_url" toml:"cloud_url" validate:"required,url"`
	CloudTimeout time.Duration `json:"cloud_timeout" yaml:"cloud_timeout" toml:"cloud_timeout" validate:"gt=0"`
	BufferSize   int           `json:"buffer_size" yaml:"buffer_size" toml:"buffer_size" validate:"min=1"`
	// MaxFrameAge is how old the newest frame may be before detection
	// reports no signal. Zero disables the check.
	MaxFrameAge  time.Duration `json:"max_frame_age" yaml:"max_frame_age" toml:"max_frame_age" validate:"gte=0"`
	Cooldown     time.Duration `json:"cooldown" yaml:"cooldown" toml:"cooldown" validate:"gte=0"`
	ExitDelay    time.Duration `json:"exit_delay" yaml:"exit_delay" toml:"exit_delay" validate:"gte=0"`
	AudioDir     string        `json:"audio_dir" yaml:"audio_dir" toml:"audio_dir"`
	Overlay      bool          `json:"overlay" yaml:"overlay" toml:"overlay"`
	StartCloud   bool          `json:"start_cloud" yaml:"start_cloud" toml:"start_cloud"`
}

// DetectionConfig configures the local YOLO detector.
type DetectionConfig struct {
	ModelPath  string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	// ConfigPath selects a Darknet model; LabelsPath overrides the COCO names.
	ConfigPath string  `json:"config_path" yaml:"config_path" toml:"config_path"`
	LabelsPath string  `json:"labels_path" yaml:"labels_path" toml:"labels_path"`
	Confidence float64 `json:"confidence" yaml:"confidence" toml:"confidence" validate:"gt=0,lte=1"`
	NMS        float64 `json:"nms" yaml:"nms" toml:"nms" validate:"gt=0,lte=1"`
	InputSize  int     `json:"input_size" yaml:"input_size" toml:"input_size" validate:"min=32"`
}

// NavigationConfig holds the distance estimation constants.
type NavigationConfig struct {
	AverageHeightCM float64 `json:"average_height_cm" yaml:"average_height_cm" toml:"average_height_cm" validate:"gt=0"`
	FrameHeightPX   float64 `json:"frame_height_px" yaml:"frame_height_px" toml:"frame_height_px" validate:"gt=0"`
	StepLengthCM    float64 `json:"step_length_cm" yaml:"step_length_cm" toml:"step_length_cm" validate:"gt=0"`
}

// SpeechConfig configures recognition and synthesis.
type SpeechConfig struct {
	Language        string        `json:"language" yaml:"language" toml:"language" validate:"required"`
	GoogleAPIKey    string        `json:"-" yaml:"-" toml:"-"`
	AudioBackend    string        `json:"audio_backend" yaml:"audio_backend" toml:"audio_backend" validate:"omitempty,oneof=auto alsa sox mock"`
	Device          string        `json:"device" yaml:"device" toml:"device"`
	SampleRate      int           `json:"sample_rate" yaml:"sample_rate" toml:"sample_rate" validate:"min=8000"`
	// EnergyThreshold is the normalized signal power (0..1) that counts as speech.
	EnergyThreshold float64       `json:"energy_threshold" yaml:"energy_threshold" toml:"energy_threshold" validate:"gte=0"`
	ListenTimeout   time.Duration `json:"listen_timeout" yaml:"listen_timeout" toml:"listen_timeout" validate:"gt=0"`
	PhraseLimit     time.Duration `json:"phrase_limit" yaml:"phrase_limit" toml:"phrase_limit" validate:"gt=0"`
	Voice           string        `json:"voice" yaml:"voice" toml:"voice"`
}

// DetectorConfig configures the remote detection service.
type DetectorConfig struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	MaxImageSize int    `json:"max_image_size" yaml:"max_image_size" toml:"max_image_size" validate:"min=1024"`
}

// Default returns the configuration the system was tuned with:
// 640x480 MJPEG at 15 fps, a ten frame buffer, 2s command cooldown.
func Default() Config {
	return Config{
		LogLevel: "info",
		Camera: CameraConfig{
			Width:     640,
			Height:    480,
			Framerate: 15,
			ChunkSize: 1024,
		},
		Stream: StreamConfig{
			Addr:         ":5000",
			PollInterval: 100 * time.Millisecond,
		},
		Client: ClientConfig{
			CameraURL:    "http://192.168.0.10:5000/video_feed",
			CloudURL:     "http://127.0.0.1:5000/detect",
			CloudTimeout: 60 * time.Second,
			BufferSize:   10,
			MaxFrameAge:  2 * time.Second,
			Cooldown:     2 * time.Second,
			ExitDelay:    3 * time.Second,
			AudioDir:     "audios",
		},
		Detection: DetectionConfig{
			ModelPath:  "models/yolov8s.onnx",
			Confidence: 0.5,
			NMS:        0.3,
			InputSize:  640,
		},
		Navigation: NavigationConfig{
			AverageHeightCM: 170,
			FrameHeightPX:   480,
			StepLengthCM:    30,
		},
		Speech: SpeechConfig{
			Language:        "pt-BR",
			AudioBackend:    "auto",
			SampleRate:      16000,
			EnergyThreshold: 0.005,
			ListenTimeout:   3 * time.Second,
			PhraseLimit:     5 * time.Second,
		},
		Detector: DetectorConfig{
			Addr:         ":5000",
			MaxImageSize: 16 << 20,
		},
	}
}
