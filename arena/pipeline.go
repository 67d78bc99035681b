package arena

import (
	"errors"
	"image"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyFrame is returned for nil or zero-sized frames
	ErrEmptyFrame = errors.New("empty frame")

	// ErrNoOpenCV is returned by CVProcessor when the binary was built
	// without the withcv tag
	ErrNoOpenCV = errors.New("built without OpenCV support (rebuild with -tags withcv)")
)

// Debug stage names reported to an Observer
const (
	StageGray        = "gray"
	StageUndistorted = "undistorted"
	StageRectified   = "rectified"
	StageBlurred     = "blurred"
	StageEroded      = "eroded"
	StageThresholded = "thresholded"
	StageEdges       = "edges"
)

// StageFunc receives an intermediate image. Implementations must not keep
// img past the call unless they copy it.
type StageFunc func(stage string, img image.Image)

// Rectifier removes lens distortion and camera tilt from a frame
type Rectifier interface {
	Rectify(frame image.Image, att Attitude, p Params, observe StageFunc) (*image.Gray, error)
}

// Extractor detects raw lines in a rectified frame
type Extractor interface {
	Extract(img *image.Gray, p Params, observe StageFunc) ([]*Line, error)
}

// FrameProcessor bundles the image-processing stages
type FrameProcessor interface {
	Rectifier
	Extractor
	Close() error
}

// Observer receives debug artifacts. The pipeline works without one.
type Observer interface {
	ObserveStage(stage string, img image.Image)
	ObserveResult(res FrameResult)
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Attitude  Attitude  `json:"attitude"`
	// Levelled is set when no attitude was available and level was assumed
	Levelled bool          `json:"levelled"`
	Bounds   Rect          `json:"bounds"`
	RawLines []Line        `json:"rawLines,omitempty"`
	Lines    []Line        `json:"lines"`
	Corners  []Point       `json:"corners"`
	// FrameCorners are Corners mapped back into the undistorted camera
	// frame. Only set when the pipeline knows the focal length.
	FrameCorners []Point       `json:"frameCorners,omitempty"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// Pipeline runs rectify, extract and cluster for one frame at a time. The
// only state it keeps between frames is the parameter store.
type Pipeline struct {
	mu       sync.Mutex
	proc     FrameProcessor
	attitude AttitudeSource
	params   *ParamStore
	observer Observer
	logger   *log.Logger
	focal    float64
	now      func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithObserver attaches a debug observer
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger replaces the default logger
func WithLogger(l *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithFocalLength enables mapping corners back to camera frame coordinates
func WithFocalLength(f float64) PipelineOption {
	return func(p *Pipeline) { p.focal = f }
}

// NewPipeline creates a pipeline. att may be nil, in which case every frame
// is treated as level.
func NewPipeline(proc FrameProcessor, att AttitudeSource, params *ParamStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		proc:     proc,
		attitude: att,
		params:   params,
		logger:   log.New(os.Stderr, "[PIPELINE] ", log.LstdFlags|log.Lmicroseconds),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Params returns the live parameter store
func (p *Pipeline) Params() *ParamStore {
	return p.params
}

// Process runs one frame to completion. Failures degrade to a result with
// no lines and a populated Error; they never abort the caller.
func (p *Pipeline) Process(frame image.Image) (res FrameResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	res = FrameResult{
		ID:        uuid.NewString(),
		Timestamp: start,
		Lines:     []Line{},
		Corners:   []Point{},
	}
	defer func() {
		res.Duration = p.now().Sub(start)
		if p.observer != nil {
			p.observer.ObserveResult(res)
		}
	}()

	if frame == nil || frame.Bounds().Empty() {
		res.Error = ErrEmptyFrame.Error()
		p.logger.Printf("frame %s: %v", res.ID, ErrEmptyFrame)
		return res
	}
	b := frame.Bounds()
	res.Bounds = Rect{Width: float64(b.Dx()), Height: float64(b.Dy())}

	params := p.params.Get()
	res.Attitude, res.Levelled = p.currentAttitude()

	rectified, err := p.proc.Rectify(frame, res.Attitude, params, p.observe)
	if err != nil {
		res.Error = err.Error()
		p.logger.Printf("frame %s: rectify: %v", res.ID, err)
		return res
	}
	p.observe(StageRectified, rectified)

	raw, err := p.proc.Extract(rectified, params, p.observe)
	if err != nil {
		res.Error = err.Error()
		p.logger.Printf("frame %s: extract: %v", res.ID, err)
		return res
	}

	// Clustering flips members in place; keep the detections as found.
	res.RawLines = make([]Line, len(raw))
	for i, l := range raw {
		res.RawLines[i] = *l
	}

	clusters := NewClusterer(params).Cluster(raw)
	res.Lines = clusters.Lines()
	if clusters.Corners != nil {
		res.Corners = clusters.Corners
	}
	if p.focal > 0 && len(res.Corners) > 0 {
		res.FrameCorners, err = p.frameCorners(res)
		if err != nil {
			p.logger.Printf("frame %s: corners: %v", res.ID, err)
		}
	}
	return res
}

// frameCorners undoes the attitude warp for each rectified-frame corner
func (p *Pipeline) frameCorners(res FrameResult) ([]Point, error) {
	h, err := AttitudeHomography(res.Attitude, p.focal, res.Bounds.Width, res.Bounds.Height)
	if err != nil {
		return nil, err
	}
	inv, err := h.Invert()
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(res.Corners))
	for i, c := range res.Corners {
		out[i] = inv.Apply(c)
	}
	return out, nil
}

func (p *Pipeline) currentAttitude() (Attitude, bool) {
	if p.attitude == nil {
		return Level(), true
	}
	att, err := p.attitude.Current()
	if err != nil {
		p.logger.Printf("attitude unavailable, assuming level: %v", err)
		return Level(), true
	}
	return att, false
}

func (p *Pipeline) observe(stage string, img image.Image) {
	if p.observer != nil && img != nil {
		p.observer.ObserveStage(stage, img)
	}
}
