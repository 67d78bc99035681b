package arena

import (
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorOverlay renders a frame result as vector graphics in image
// coordinates (one unit per pixel)
type VectorOverlay struct {
	Result     FrameResult
	Workspace  Rect
	ShowRaw    bool
	Resolution canvas.Resolution // PNG output only
}

// NewVectorOverlay creates an overlay with default settings
func NewVectorOverlay(res FrameResult, workspace Rect) *VectorOverlay {
	return &VectorOverlay{
		Result:     res,
		Workspace:  workspace,
		ShowRaw:    true,
		Resolution: canvas.DPMM(1),
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the overlay as an SVG document
func (v *VectorOverlay) RenderToSVG(w io.Writer) error {
	width, height := v.size()
	svgRenderer := svg.New(w, width, height, nil)
	v.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG rasterizes the overlay and writes it as PNG
func (v *VectorOverlay) RenderToPNG(w io.Writer) error {
	width, height := v.size()
	rast := rasterizer.New(width, height, v.Resolution, canvas.DefaultColorSpace)
	v.renderToCanvas(rast, width, height)
	return png.Encode(w, rast)
}

func (v *VectorOverlay) size() (float64, float64) {
	width, height := v.Result.Bounds.Width, v.Result.Bounds.Height
	if width <= 0 || height <= 0 {
		m := v.Workspace.Max()
		width, height = m.X, m.Y
	}
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}
	return width, height
}

func (v *VectorOverlay) renderToCanvas(renderer canvasRenderer, width, height float64) {
	// canvas is y-up, image coordinates are y-down
	flip := func(p Point) (float64, float64) { return p.X, height - p.Y }
	frame := Rect{Width: width, Height: height}

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.Black}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	wsStyle := canvas.DefaultStyle
	wsStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	wsStyle.Stroke = canvas.Paint{Color: ColorWorkspace}
	wsStyle.StrokeWidth = 1
	wsStyle.Dashes = []float64{6, 4}
	x0, y0 := flip(Point{X: v.Workspace.X, Y: v.Workspace.Y + v.Workspace.Height})
	renderer.RenderPath(canvas.Rectangle(v.Workspace.Width, v.Workspace.Height).Translate(x0, y0), wsStyle, canvas.Identity)

	strokeLine := func(l Line, c color.RGBA, width float64) {
		a, b, ok := l.Segment(frame)
		if !ok {
			return
		}
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = width

		p := &canvas.Path{}
		p.MoveTo(flip(a))
		p.LineTo(flip(b))
		renderer.RenderPath(p, style, canvas.Identity)
	}

	if v.ShowRaw {
		for _, l := range v.Result.RawLines {
			strokeLine(l, ColorRawLine, 0.5)
		}
	}
	for i, l := range v.Result.Lines {
		strokeLine(l, LinePalette[i%len(LinePalette)], 3)
	}

	cornerStyle := canvas.DefaultStyle
	cornerStyle.Fill = canvas.Paint{Color: ColorCorner}
	cornerStyle.Stroke = canvas.Paint{Color: canvas.White}
	cornerStyle.StrokeWidth = 1
	for _, c := range v.Result.Corners {
		renderer.RenderPath(canvas.Circle(5).Translate(flip(c)), cornerStyle, canvas.Identity)
	}
}
