package arena

import (
	"image"
	"image/draw"
	"sort"
	"sync"
	"time"
)

// DebugStore keeps the latest intermediate images and result for the
// operator endpoints. It implements Observer.
type DebugStore struct {
	mu      sync.RWMutex
	stages  map[string]image.Image
	last    *FrameResult
	frames  uint64
	updated time.Time
}

// NewDebugStore creates an empty store
func NewDebugStore() *DebugStore {
	return &DebugStore{stages: make(map[string]image.Image)}
}

// ObserveStage stores a copy of img under stage
func (d *DebugStore) ObserveStage(stage string, img image.Image) {
	c := cloneImage(img)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stages[stage] = c
}

// ObserveResult records the outcome of a frame
func (d *DebugStore) ObserveResult(res FrameResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = &res
	d.frames++
	d.updated = time.Now()
}

// Stage returns the latest image for stage
func (d *DebugStore) Stage(stage string) (image.Image, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	img, ok := d.stages[stage]
	return img, ok
}

// Stages returns the names of the stored stages in sorted order
func (d *DebugStore) Stages() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.stages))
	for n := range d.stages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LastResult returns the most recent frame result
func (d *DebugStore) LastResult() (FrameResult, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return FrameResult{}, false
	}
	return *d.last, true
}

// Frames returns how many frames have been observed and when the last one
// finished
func (d *DebugStore) Frames() (uint64, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frames, d.updated
}

// cloneImage returns a deep copy, keeping grayscale images grayscale
func cloneImage(img image.Image) image.Image {
	b := img.Bounds()
	if _, ok := img.(*image.Gray); ok {
		out := image.NewGray(b)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	}
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
