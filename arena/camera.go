package arena

import "fmt"

// CameraModel holds the calibrated pinhole intrinsics and the
// radial/tangential distortion pair. It is loaded once and never mutated.
type CameraModel struct {
	Width       int        `yaml:"width" json:"width"`
	Height      int        `yaml:"height" json:"height"`
	FocalLength float64    `yaml:"focalLength" json:"focalLength"`
	Intrinsics  [9]float64 `yaml:"intrinsics" json:"intrinsics"` // row-major 3x3
	Distortion  [5]float64 `yaml:"distortion" json:"distortion"` // k1 k2 p1 p2 k3
}

// DefaultCameraModel returns the calibration of the 640x480 downward camera
func DefaultCameraModel() CameraModel {
	return CameraModel{
		Width:       640,
		Height:      480,
		FocalLength: 423.0,
		Intrinsics: [9]float64{
			422.918640, 0, 350.119451,
			0, 423.121112, 236.380265,
			0, 0, 1,
		},
		Distortion: [5]float64{-0.321590, 0.089597, 0.001090, -0.000489, 0},
	}
}

// Validate checks that the model can produce undistortion maps
func (c CameraModel) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.FocalLength <= 0 {
		return fmt.Errorf("focalLength must be positive, got %g", c.FocalLength)
	}
	if c.Intrinsics[0] == 0 || c.Intrinsics[4] == 0 || c.Intrinsics[8] == 0 {
		return fmt.Errorf("intrinsics matrix is degenerate")
	}
	return nil
}

// Bounds returns the frame rectangle
func (c CameraModel) Bounds() Rect {
	return Rect{Width: float64(c.Width), Height: float64(c.Height)}
}
