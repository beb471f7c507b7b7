package tfevent

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// NewImage PNG-encodes one HWC image whose values lie in [0,255]. Values
// outside that range are clamped. channels must be 1, 3 or 4.
func NewImage(height, width, channels int, pixels []float64) (*Image, error) {
	if len(pixels) != height*width*channels {
		return nil, fmt.Errorf("image %dx%dx%d needs %d values, got %d",
			height, width, channels, height*width*channels, len(pixels))
	}

	rect := image.Rect(0, 0, width, height)
	var img image.Image

	switch channels {
	case 1:
		gray := image.NewGray(rect)
		for i, v := range pixels {
			gray.Pix[i] = toByte(v)
		}
		img = gray
	case 3, 4:
		rgba := image.NewNRGBA(rect)
		for y := range height {
			for x := range width {
				base := (y*width + x) * channels
				c := color.NRGBA{
					R: toByte(pixels[base]),
					G: toByte(pixels[base+1]),
					B: toByte(pixels[base+2]),
					A: 255,
				}
				if channels == 4 {
					c.A = toByte(pixels[base+3])
				}
				rgba.SetNRGBA(x, y, c)
			}
		}
		img = rgba
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannels, channels)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return &Image{
		Height:     int32(height),
		Width:      int32(width),
		Colorspace: int32(channels),
		Encoded:    buf.Bytes(),
	}, nil
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
