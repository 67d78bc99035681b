package arena

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.SetGray(x, 3, color.Gray{Y: 255})
	}
	return img
}

func encodeWith(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, testImage()))
	return buf.Bytes()
}

func TestDecodeFrame_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format FrameFormat
		enc    func(*bytes.Buffer, image.Image) error
	}{
		{"png", FormatPNG, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
		{"jpeg", FormatJPEG, func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) }},
		{"bmp", FormatBMP, func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }},
		{"tiff", FormatTIFF, func(b *bytes.Buffer, img image.Image) error { return tiff.Encode(b, img, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeWith(t, tt.enc)

			format, ok := SniffFormat(data)
			require.True(t, ok)
			assert.Equal(t, tt.format, format)

			img, err := DecodeFrame(data)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
		})
	}
}

func TestDecodeFrame_PNGPixels(t *testing.T) {
	data := encodeWith(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	img, err := DecodeFrame(data)
	require.NoError(t, err)

	r, _, _, _ := img.At(2, 3).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = img.At(2, 2).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestDecodeFrame_Errors(t *testing.T) {
	_, err := DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = DecodeFrame([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	// valid magic, truncated body
	data := encodeWith(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	_, err = DecodeFrame(data[:20])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding png frame")
}

func TestIsPNG(t *testing.T) {
	assert.True(t, IsPNG([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))
	assert.False(t, IsPNG([]byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, IsPNG([]byte("GIF89a..")))
	// first four bytes match, the DOS line-ending check does not
	assert.False(t, IsPNG([]byte{0x89, 'P', 'N', 'G', '\n', '\n', 0x1a, '\n'}))
	_, ok := SniffFormat([]byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0})
	assert.False(t, ok)
}

func TestDecodeFrameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	data := encodeWith(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	require.NoError(t, os.WriteFile(path, data, 0644))

	img, err := DecodeFrameFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = DecodeFrameFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
