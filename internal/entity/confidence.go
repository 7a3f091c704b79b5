package entity

// Layer weights for the overall confidence blend. Carried over from the
// original calibration as tunable defaults, not a fixed law.
const (
	WeightOCR           = 0.4
	WeightExtraction    = 0.4
	WeightNormalization = 0.2
)

// ConfidenceLayers carries an independent trust score per processing stage.
// Derived from item fields, never persisted as its own row.
type ConfidenceLayers struct {
	OCR           float32               `json:"ocr"`
	Extraction    float32               `json:"extraction"`
	Normalization *float32              `json:"normalization,omitempty"`
	Flags         map[string]FlagResult `json:"flags,omitempty"`
}

// Overall blends the layers 0.4/0.4/0.2. When the normalization layer is
// absent the remaining weights are renormalized to 1.0. The result is always
// within [0, 1], whatever the inputs.
func (c ConfidenceLayers) Overall() float32 {
	ocr := clamp01(c.OCR)
	ext := clamp01(c.Extraction)
	if c.Normalization == nil {
		return clamp01((WeightOCR*ocr + WeightExtraction*ext) / (WeightOCR + WeightExtraction))
	}
	norm := clamp01(*c.Normalization)
	return clamp01(WeightOCR*ocr + WeightExtraction*ext + WeightNormalization*norm)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
