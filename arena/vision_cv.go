//go:build withcv

package arena

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"gocv.io/x/gocv"
)

// CVProcessor rectifies frames and extracts lines with OpenCV
type CVProcessor struct {
	cam    CameraModel
	ext    ExtractorConfig
	map1   gocv.Mat
	map2   gocv.Mat
	kernel gocv.Mat
}

// NewCVProcessor precomputes the undistortion maps for cam. Close must be
// called to release the native buffers.
func NewCVProcessor(cam CameraModel, ext ExtractorConfig) (*CVProcessor, error) {
	if err := cam.Validate(); err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	if err := ext.Validate(); err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	k := matFromFloats(3, 3, cam.Intrinsics[:])
	defer k.Close()
	d := matFromFloats(1, 5, cam.Distortion[:])
	defer d.Close()
	r := gocv.NewMat()
	defer r.Close()

	size := image.Pt(cam.Width, cam.Height)
	newK, _ := gocv.GetOptimalNewCameraMatrixWithParams(k, d, size, 0, size, false)
	defer newK.Close()

	p := &CVProcessor{
		cam:    cam,
		ext:    ext,
		map1:   gocv.NewMat(),
		map2:   gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphCross, image.Pt(ext.ErodeKernel, ext.ErodeKernel)),
	}
	gocv.InitUndistortRectifyMap(k, d, r, newK, size, int(gocv.MatTypeCV32F), p.map1, p.map2)
	return p, nil
}

// Rectify converts to grayscale, optionally undistorts, and warps the frame
// to the level view for att. Zero attitude without undistortion returns
// the grayscale input unchanged.
func (p *CVProcessor) Rectify(frame image.Image, att Attitude, params Params, observe StageFunc) (*image.Gray, error) {
	src, err := grayMat(frame)
	if err != nil {
		return nil, err
	}
	defer func() { src.Close() }()
	observeMat(observe, StageGray, src)

	if params.Undistort {
		if src.Cols() != p.cam.Width || src.Rows() != p.cam.Height {
			return nil, fmt.Errorf("frame is %dx%d but the calibration is for %dx%d",
				src.Cols(), src.Rows(), p.cam.Width, p.cam.Height)
		}
		undistorted := gocv.NewMat()
		gocv.Remap(src, &undistorted, &p.map1, &p.map2, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
		src.Close()
		src = undistorted
		observeMat(observe, StageUndistorted, src)
	}

	h, err := AttitudeHomography(att, p.cam.FocalLength, float64(src.Cols()), float64(src.Rows()))
	if err != nil {
		return nil, fmt.Errorf("building homography: %w", err)
	}
	if h.IsIdentity(1e-12) {
		return matToGray(src)
	}

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.SetDoubleAt(i, j, h[i][j])
		}
	}

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspectiveWithParams(src, &warped, m, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return matToGray(warped)
}

// Extract runs blur, erosion, binarization, edge detection and the Hough
// transform, returning one Line per (rho, theta) detection.
func (p *CVProcessor) Extract(img *image.Gray, params Params, observe StageFunc) ([]*Line, error) {
	src, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := p.ext.BlurKernel
	gocv.GaussianBlur(src, &blurred, image.Pt(k, k), p.ext.BlurSigma, p.ext.BlurSigma, gocv.BorderDefault)
	observeMat(observe, StageBlurred, blurred)

	eroded := blurred.Clone()
	defer eroded.Close()
	for i := 0; i < p.ext.ErodeIterations; i++ {
		gocv.Erode(eroded, &eroded, p.kernel)
	}
	observeMat(observe, StageEroded, eroded)

	thresholded := gocv.NewMat()
	defer thresholded.Close()
	gocv.Threshold(eroded, &thresholded, float32(params.WhiteThreshold), 255, gocv.ThresholdBinary)
	observeMat(observe, StageThresholded, thresholded)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(thresholded, &edges, float32(p.ext.CannyLow), float32(p.ext.CannyHigh))
	observeMat(observe, StageEdges, edges)

	detections := gocv.NewMat()
	defer detections.Close()
	gocv.HoughLines(edges, &detections, float32(p.ext.HoughRho), float32(p.ext.HoughTheta*math.Pi/180), p.ext.HoughVotes)

	lines := make([]*Line, 0, detections.Rows())
	for i := 0; i < detections.Rows(); i++ {
		v := detections.GetVecfAt(i, 0)
		l := LineFromPolar(float64(v[0]), float64(v[1]))
		lines = append(lines, &l)
	}
	return lines, nil
}

// Close releases the undistortion maps and the erosion kernel
func (p *CVProcessor) Close() error {
	for _, m := range []*gocv.Mat{&p.map1, &p.map2, &p.kernel} {
		if err := m.Close(); err != nil {
			return err
		}
	}
	return nil
}

// grayMat converts frame to a single-channel Mat, converting BGR input
func grayMat(frame image.Image) (gocv.Mat, error) {
	if g, ok := frame.(*image.Gray); ok {
		m, err := gocv.ImageGrayToMatGray(g)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("converting frame: %w", err)
		}
		return m, nil
	}

	color3, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("converting frame: %w", err)
	}
	defer color3.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(color3, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// matToGray copies a single-channel Mat into a Go image
func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting mat: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)
	return g, nil
}

func observeMat(observe StageFunc, stage string, m gocv.Mat) {
	if observe == nil {
		return
	}
	if img, err := m.ToImage(); err == nil {
		observe(stage, img)
	}
}

func matFromFloats(rows, cols int, vals []float64) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.SetDoubleAt(i, j, vals[i*cols+j])
		}
	}
	return m
}
