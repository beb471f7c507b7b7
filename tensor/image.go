package tensor

import (
	"errors"
	"fmt"
)

// ErrNotImage is returned by ToNHWC for tensors that cannot be read as images.
var ErrNotImage = errors.New("tensor is not an image")

// ToNHWC normalizes an image tensor to rank 4 (batch, height, width, channel):
//   - rank 4 keeps its shape
//   - rank 3 with a last dimension of 1, 3 or 4 is one HWC image
//   - any other rank 3 is a batch of single-channel NHW images
//   - rank 2 is one grayscale HW image
//
// A nil tensor or any other rank fails with ErrNotImage, and data that does
// not fill the shape with ErrShapeMismatch. The result shares t's data.
func ToNHWC(t *Tensor) (*Tensor, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrNotImage)
	}
	s := t.Shape
	switch len(s) {
	case 4:
		return t.Reshape(s...)
	case 3:
		switch s[2] {
		case 1, 3, 4:
			return t.Reshape(1, s[0], s[1], s[2])
		default:
			return t.Reshape(s[0], s[1], s[2], 1)
		}
	case 2:
		return t.Reshape(1, s[0], s[1], 1)
	default:
		return nil, fmt.Errorf("%w: shape %v", ErrNotImage, s)
	}
}
