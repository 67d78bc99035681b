package arena

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnknownFormat is returned for payloads that are not a supported image
	ErrUnknownFormat = errors.New("unknown frame format: not PNG, JPEG, BMP or TIFF")
)

// FrameFormat identifies an encoded frame
type FrameFormat string

const (
	FormatPNG  FrameFormat = "png"
	FormatJPEG FrameFormat = "jpeg"
	FormatBMP  FrameFormat = "bmp"
	FormatTIFF FrameFormat = "tiff"
)

// SniffFormat identifies the encoding from the magic bytes
func SniffFormat(data []byte) (FrameFormat, bool) {
	switch {
	case IsPNG(data):
		return FormatPNG, true
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG, true
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return FormatBMP, true
	case len(data) >= 4 && (bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*"))):
		return FormatTIFF, true
	}
	return "", false
}

// pngSignature is the 8-byte PNG file header
var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// IsPNG checks if data starts with the PNG signature
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// DecodeFrame decodes a camera frame received over the wire
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	format, ok := SniffFormat(data)
	if !ok {
		return nil, ErrUnknownFormat
	}

	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s frame: %w", format, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	return img, nil
}

// DecodeFrameFile reads and decodes an image file
func DecodeFrameFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return DecodeFrame(data)
}
