package arena

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colors
var (
	ColorRawLine   = color.RGBA{255, 200, 0, 255}
	ColorWorkspace = color.RGBA{0, 160, 255, 255}
	ColorCorner    = color.RGBA{0, 200, 0, 255}
	ColorLabel     = color.RGBA{255, 255, 255, 255}
)

// LinePalette cycles over the final boundary lines
var LinePalette = []color.RGBA{
	{255, 0, 0, 255},
	{255, 0, 255, 255},
	{0, 255, 255, 255},
	{255, 128, 0, 255},
	{128, 0, 255, 255},
	{0, 255, 0, 255},
}

// RenderOverlay draws the detection result over base. base may be nil, in
// which case a black canvas of res.Bounds is used.
func RenderOverlay(base image.Image, res FrameResult, workspace Rect) *image.RGBA {
	var bounds image.Rectangle
	if base != nil {
		bounds = image.Rect(0, 0, base.Bounds().Dx(), base.Bounds().Dy())
	} else {
		bounds = image.Rect(0, 0, int(res.Bounds.Width), int(res.Bounds.Height))
	}
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)
	if base != nil {
		draw.Draw(img, bounds, base, base.Bounds().Min, draw.Src)
	}

	frame := Rect{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}

	drawRect(img, workspace, ColorWorkspace)

	for _, l := range res.RawLines {
		drawInfiniteLine(img, l, frame, 1, ColorRawLine)
	}

	for i, l := range res.Lines {
		c := LinePalette[i%len(LinePalette)]
		drawInfiniteLine(img, l, frame, 3, c)
		if a, b, ok := l.Segment(frame); ok {
			mx, my := int((a.X+b.X)/2), int((a.Y+b.Y)/2)
			drawText(img, mx+4, my-4, fmt.Sprintf("%d", i), c)
		}
	}

	for _, p := range res.Corners {
		drawCircle(img, int(p.X), int(p.Y), 5, ColorCorner)
	}

	status := fmt.Sprintf("lines=%d corners=%d", len(res.Lines), len(res.Corners))
	if res.Levelled {
		status += " (no attitude)"
	}
	drawText(img, 6, 14, status, ColorLabel)

	return img
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// drawInfiniteLine draws the part of l inside frame with the given width
func drawInfiniteLine(img *image.RGBA, l Line, frame Rect, width int, c color.RGBA) {
	a, b, ok := l.Segment(frame)
	if !ok {
		return
	}
	drawSegment(img, int(a.X), int(a.Y), int(b.X), int(b.Y), width, c)
}

// drawSegment rasterizes a segment with Bresenham's algorithm
func drawSegment(img *image.RGBA, x0, y0, x1, y1, width int, c color.RGBA) {
	dx := x1 - x0
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y0
	if dy < 0 {
		dy = -dy
	}
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx - dy
	half := width / 2

	for {
		for oy := -half; oy <= half; oy++ {
			for ox := -half; ox <= half; ox++ {
				setPixel(img, x0+ox, y0+oy, c)
			}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x0 += sx
		}
		if e2 < dx {
			e += dx
			y0 += sy
		}
	}
}

// drawRect outlines r
func drawRect(img *image.RGBA, r Rect, c color.RGBA) {
	x0, y0 := int(r.X), int(r.Y)
	x1, y1 := int(r.X+r.Width)-1, int(r.Y+r.Height)-1
	drawSegment(img, x0, y0, x1, y0, 1, c)
	drawSegment(img, x1, y0, x1, y1, 1, c)
	drawSegment(img, x1, y1, x0, y1, 1, c)
	drawSegment(img, x0, y1, x0, y0, 1, c)
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
