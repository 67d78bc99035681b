package arena

import "time"

// Config represents the full configuration file
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Camera    CameraConfig    `yaml:"camera" json:"camera"`
	Attitude  AttitudeConfig  `yaml:"attitude" json:"attitude"`
	Detection Params          `yaml:"detection" json:"detection"`
	Extractor ExtractorConfig `yaml:"extractor" json:"extractor"`
	HTTP      HTTPConfig      `yaml:"http,omitempty" json:"http,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`

	// Publishing: QoS 0 and retained results unless set
	QoS    byte  `yaml:"qos,omitempty" json:"qos,omitempty"`
	Retain *bool `yaml:"retain,omitempty" json:"retain,omitempty"`
}

// CameraConfig names the frame topic and the calibration of the camera
type CameraConfig struct {
	Topic string `yaml:"topic" json:"topic"`

	// Polled camera source used instead of, or next to, the MQTT topic
	SnapshotURL  string        `yaml:"snapshotUrl,omitempty" json:"snapshotUrl,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`

	CameraModel `yaml:",inline"`
}

// DefaultPollInterval is used when a snapshot URL is set without an interval
const DefaultPollInterval = 500 * time.Millisecond

// GetPollInterval returns the snapshot interval or its default
func (c CameraConfig) GetPollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return DefaultPollInterval
}

// AttitudeConfig names the attitude topic
type AttitudeConfig struct {
	Topic  string        `yaml:"topic" json:"topic"`
	MaxAge time.Duration `yaml:"maxAge,omitempty" json:"maxAge,omitempty"` // 0 accepts any age
}

// ExtractorConfig holds the fixed parameters of the line extractor
type ExtractorConfig struct {
	BlurKernel      int     `yaml:"blurKernel" json:"blurKernel"`
	BlurSigma       float64 `yaml:"blurSigma" json:"blurSigma"`
	ErodeKernel     int     `yaml:"erodeKernel" json:"erodeKernel"`
	ErodeIterations int     `yaml:"erodeIterations" json:"erodeIterations"`
	CannyLow        float64 `yaml:"cannyLow" json:"cannyLow"`
	CannyHigh       float64 `yaml:"cannyHigh" json:"cannyHigh"`
	HoughRho        float64 `yaml:"houghRho" json:"houghRho"`     // pixels
	HoughTheta      float64 `yaml:"houghTheta" json:"houghTheta"` // degrees
	HoughVotes      int     `yaml:"houghVotes" json:"houghVotes"`
}

// DefaultExtractorConfig returns the extractor settings used in the arena
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		BlurKernel:      7,
		BlurSigma:       8,
		ErodeKernel:     3,
		ErodeIterations: 8,
		CannyLow:        50,
		CannyHigh:       150,
		HoughRho:        1,
		HoughTheta:      1,
		HoughVotes:      80,
	}
}

// HTTPConfig holds the debug server settings
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// GetPublishPrefix returns the topic prefix, defaulting to arenaline
func (c *Config) GetPublishPrefix() string {
	if c.MQTT.PublishPrefix == "" {
		return "arenaline"
	}
	return c.MQTT.PublishPrefix
}
