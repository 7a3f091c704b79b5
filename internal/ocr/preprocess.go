package ocr

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
)

// enhanceForOCR applies the grayscale/contrast/sharpen chain that measurably
// improves local OCR on photographed documents. Cloud vendors do their own
// preprocessing; only the tesseract provider runs this.
func enhanceForOCR(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
