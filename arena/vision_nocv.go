//go:build !withcv

package arena

import "image"

// CVProcessor is unavailable in this build
type CVProcessor struct{}

// NewCVProcessor always fails without OpenCV
func NewCVProcessor(cam CameraModel, ext ExtractorConfig) (*CVProcessor, error) {
	return nil, ErrNoOpenCV
}

// Rectify returns ErrNoOpenCV
func (p *CVProcessor) Rectify(image.Image, Attitude, Params, StageFunc) (*image.Gray, error) {
	return nil, ErrNoOpenCV
}

// Extract returns ErrNoOpenCV
func (p *CVProcessor) Extract(*image.Gray, Params, StageFunc) ([]*Line, error) {
	return nil, ErrNoOpenCV
}

// Close is a no-op
func (p *CVProcessor) Close() error { return nil }
