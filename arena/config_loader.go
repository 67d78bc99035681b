package arena

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with every optional field filled
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			PublishPrefix: "arenaline",
			ClientID:      "arenaline",
		},
		Camera:    CameraConfig{CameraModel: DefaultCameraModel()},
		Detection: DefaultParams(),
		Extractor: DefaultExtractorConfig(),
		HTTP:      HTTPConfig{Port: 8080},
	}
}

// LoadConfig loads the configuration from a YAML file on top of the
// defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.MQTT.Broker != "" {
		if c.Camera.Topic == "" {
			return fmt.Errorf("camera.topic is required when mqtt.broker is set")
		}
		if c.Attitude.Topic == "" {
			return fmt.Errorf("attitude.topic is required when mqtt.broker is set")
		}
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Extractor.Validate(); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if c.Camera.PollInterval < 0 {
		return fmt.Errorf("camera.pollInterval must not be negative")
	}
	if c.Attitude.MaxAge < 0 {
		return fmt.Errorf("attitude.maxAge must not be negative")
	}
	return nil
}

// Validate checks the fixed extractor parameters
func (e ExtractorConfig) Validate() error {
	if e.BlurKernel <= 0 || e.BlurKernel%2 == 0 {
		return fmt.Errorf("blurKernel must be a positive odd number, got %d", e.BlurKernel)
	}
	if e.ErodeKernel <= 0 {
		return fmt.Errorf("erodeKernel must be positive, got %d", e.ErodeKernel)
	}
	if e.ErodeIterations < 0 {
		return fmt.Errorf("erodeIterations must not be negative, got %d", e.ErodeIterations)
	}
	if e.CannyLow < 0 || e.CannyHigh < e.CannyLow {
		return fmt.Errorf("canny thresholds must satisfy 0 <= low <= high, got %g/%g", e.CannyLow, e.CannyHigh)
	}
	if e.HoughRho <= 0 || e.HoughTheta <= 0 || e.HoughVotes <= 0 {
		return fmt.Errorf("hough resolution and votes must be positive")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
