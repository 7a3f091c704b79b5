package extract

import (
	"errors"
	"strings"
	"unicode"

	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/ocr"
)

// FlagDetector computes one named flag for one candidate item. Detectors are
// independent and composable: a failing detector omits its flag, it never
// aborts the item.
type FlagDetector interface {
	Name() string
	Detect(block ocr.Block, page ocr.Page) (entity.FlagResult, error)
}

// DefaultFlagDetectors returns the detectors every engine runs unless the
// caller supplies its own set.
func DefaultFlagDetectors() []FlagDetector {
	return []FlagDetector{
		strikethroughDetector{},
		handwritingDetector{},
		illegibleDetector{},
	}
}

// strikethroughDetector looks for the dense dash/strike runs OCR engines
// produce when text is crossed out.
type strikethroughDetector struct{}

func (strikethroughDetector) Name() string { return "crossed_out" }

func (strikethroughDetector) Detect(block ocr.Block, _ ocr.Page) (entity.FlagResult, error) {
	text := block.Text
	if text == "" {
		return entity.FlagResult{}, errors.New("empty block")
	}
	var strikes int
	for _, r := range text {
		switch r {
		case '-', '_', '~', '=':
			strikes++
		}
	}
	ratio := float32(strikes) / float32(len([]rune(text)))
	detected := ratio > 0.25
	conf := ratio * 2
	if conf > 1 {
		conf = 1
	}
	if !detected {
		conf = 1 - conf
	}
	return entity.FlagResult{Detected: detected, Confidence: conf}, nil
}

// handwritingDetector is a heuristic: handwriting drags recognition
// confidence down while keeping word shapes irregular (mixed case mid-word,
// isolated single letters).
type handwritingDetector struct{}

func (handwritingDetector) Name() string { return "handwritten" }

func (handwritingDetector) Detect(block ocr.Block, page ocr.Page) (entity.FlagResult, error) {
	if block.Text == "" {
		return entity.FlagResult{}, errors.New("empty block")
	}
	irregular := irregularCaseRatio(block.Text)
	lowConf := block.Confidence > 0 && block.Confidence < 0.55

	detected := lowConf && irregular > 0.2
	conf := irregular
	if lowConf {
		conf += 0.3
	}
	if conf > 1 {
		conf = 1
	}
	if !detected {
		conf = 1 - irregular
	}
	return entity.FlagResult{Detected: detected, Confidence: conf}, nil
}

// irregularCaseRatio counts words with case changes after the first letter.
func irregularCaseRatio(text string) float32 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	var irregular int
	for _, w := range words {
		runes := []rune(w)
		for i := 1; i < len(runes); i++ {
			if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
				irregular++
				break
			}
		}
	}
	return float32(irregular) / float32(len(words))
}

// illegibleDetector flags blocks whose recognition confidence is so low the
// text cannot be trusted at all.
type illegibleDetector struct{}

func (illegibleDetector) Name() string { return "illegible" }

func (illegibleDetector) Detect(block ocr.Block, _ ocr.Page) (entity.FlagResult, error) {
	if block.Text == "" {
		return entity.FlagResult{}, errors.New("empty block")
	}
	detected := block.Confidence < 0.3
	conf := block.Confidence
	if detected {
		conf = 1 - block.Confidence
	}
	return entity.FlagResult{Detected: detected, Confidence: conf}, nil
}
