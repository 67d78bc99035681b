package arena

import (
	"fmt"
	"math"
	"sync"
)

// Params are the tunables that may change while the service runs
type Params struct {
	WhiteThreshold       int     `yaml:"whiteThreshold" json:"whiteThreshold"` // binarization level, 0-255
	Undistort            bool    `yaml:"undistort" json:"undistort"`
	OrientationThreshold float64 `yaml:"orientationThreshold" json:"orientationThreshold"` // cosine of max angle within a family
	Workspace            Rect    `yaml:"workspace" json:"workspace"`
	DistanceThreshold    float64 `yaml:"distanceThreshold" json:"distanceThreshold"` // pixels
}

// DefaultParams returns tunables suited to the 640x480 camera
func DefaultParams() Params {
	return Params{
		WhiteThreshold:       200,
		Undistort:            true,
		OrientationThreshold: math.Cos(10 * math.Pi / 180),
		Workspace:            Rect{X: 0, Y: 0, Width: 640, Height: 480},
		DistanceThreshold:    20,
	}
}

// Validate rejects values the pipeline cannot work with
func (p Params) Validate() error {
	if p.WhiteThreshold < 0 || p.WhiteThreshold > 255 {
		return fmt.Errorf("whiteThreshold must be in [0,255], got %d", p.WhiteThreshold)
	}
	if p.OrientationThreshold <= 0 || p.OrientationThreshold > 1 || math.IsNaN(p.OrientationThreshold) {
		return fmt.Errorf("orientationThreshold must be in (0,1], got %g", p.OrientationThreshold)
	}
	if p.DistanceThreshold <= 0 || math.IsNaN(p.DistanceThreshold) {
		return fmt.Errorf("distanceThreshold must be positive, got %g", p.DistanceThreshold)
	}
	if p.Workspace.Width <= 0 || p.Workspace.Height <= 0 {
		return fmt.Errorf("workspace must have positive size, got %gx%g", p.Workspace.Width, p.Workspace.Height)
	}
	return nil
}

// ParamStore guards the live tunables. Every frame reads one snapshot.
type ParamStore struct {
	mu     sync.RWMutex
	params Params
}

// NewParamStore creates a store after validating the initial values
func NewParamStore(initial Params) (*ParamStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &ParamStore{params: initial}, nil
}

// Get returns a copy of the current tunables
func (s *ParamStore) Get() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Set replaces the tunables if they are valid
func (s *ParamStore) Set(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return nil
}

// Update applies fn to a copy under the write lock and stores the result
// if fn succeeds and the result is valid
func (s *ParamStore) Update(fn func(*Params) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.params
	if err := fn(&p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}
