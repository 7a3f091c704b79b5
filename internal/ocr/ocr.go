// Package ocr defines the vendor-swappable OCR provider contract and its
// implementations. A provider takes a file buffer plus MIME type and returns
// a normalized page/block result; everything downstream (extraction,
// persistence) depends only on this package's types, never on a vendor SDK.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// Granularity describes the layout level a block was recognized at.
type Granularity string

const (
	GranularityBlock     Granularity = "block"
	GranularityParagraph Granularity = "paragraph"
	GranularityLine      Granularity = "line"
	GranularityWord      Granularity = "word"
)

// Block is one recognized text region on a page.
type Block struct {
	Text        string
	BBox        entity.BBox
	Confidence  float32
	Granularity Granularity
}

// Page is the normalized recognition output for one page.
type Page struct {
	Number     int // 1-indexed
	Text       string
	Confidence float32
	Blocks     []Block
}

// Result is the provider-independent recognition output for one document.
type Result struct {
	Provider     string
	ModelVersion string
	Duration     time.Duration
	Pages        []Page
}

// Provider is the one-method vendor contract. Implementations perform no
// retries; a failed call returns a *ProviderError whose Retryable flag tells
// the worker whether re-enqueueing can help.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, file []byte, mimeType string) (*Result, error)
}

// Provider names accepted by the factory.
const (
	ProviderDocumentAI = "documentai"
	ProviderAzure      = "azure"
	ProviderTesseract  = "tesseract"
)

// NewProvider selects and constructs a provider from configuration. It fails
// fast with a validation error when the selected vendor's credentials are
// absent; nothing is deferred to the first Recognize call.
func NewProvider(ctx context.Context, cfg common.OCRConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderDocumentAI:
		return NewDocumentAIProvider(ctx, cfg)
	case ProviderAzure:
		return NewAzureProvider(cfg)
	case ProviderTesseract:
		return NewTesseractProvider(cfg), nil
	default:
		return nil, common.NewValidationError("OCR_PROVIDER", "unknown provider %q", cfg.Provider)
	}
}

// Text linearizes page text, form-feed separated, for consumers that only
// need the full document body.
func (r *Result) Text() string {
	var b strings.Builder
	for i, p := range r.Pages {
		if i > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// averageConfidence is the mean block confidence, 0 for an empty slice.
func averageConfidence(blocks []Block) float32 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float32
	for _, blk := range blocks {
		sum += blk.Confidence
	}
	return sum / float32(len(blocks))
}

func validateInput(file []byte, mimeType string) error {
	if len(file) == 0 {
		return fmt.Errorf("empty file buffer")
	}
	if mimeType == "" {
		return fmt.Errorf("missing mime type")
	}
	return nil
}
