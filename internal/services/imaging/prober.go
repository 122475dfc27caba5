package imaging

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// Prober reads radiograph files through OpenCV to obtain their pixel
// dimensions and bit depth. The corpus ships 16-bit PNGs, so decoding uses
// IMReadUnchanged to keep the original depth.
type Prober struct{}

// NewProber creates a new image prober.
func NewProber() *Prober {
	return &Prober{}
}

// Size returns the pixel dimensions of the image at path. It satisfies the
// dataset.ImageSizer interface.
func (p *Prober) Size(path string) (int, int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, 0, fmt.Errorf("image file not found: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		return 0, 0, fmt.Errorf("failed to decode image: %s", path)
	}
	defer mat.Close()

	return mat.Cols(), mat.Rows(), nil
}

// BitDepth returns the bits per sample of the image at path (8 or 16).
func (p *Prober) BitDepth(path string) (int, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		return 0, fmt.Errorf("failed to decode image: %s", path)
	}
	defer mat.Close()

	switch mat.Type() {
	case gocv.MatTypeCV16UC1, gocv.MatTypeCV16UC3, gocv.MatTypeCV16UC4:
		return 16, nil
	default:
		return 8, nil
	}
}
