package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// AzureProvider recognizes raster images through Azure Computer Vision OCR.
// The v3.0 OCR endpoint takes single images only; PDF inputs must be
// rasterized upstream (the tesseract provider does that locally).
type AzureProvider struct {
	client *computervision.BaseClient
}

// NewAzureProvider constructs the provider; endpoint and key are required.
func NewAzureProvider(cfg common.OCRConfig) (*AzureProvider, error) {
	if cfg.AzureEndpoint == "" {
		return nil, common.NewValidationError("AZURE_CV_ENDPOINT", "required for the azure provider")
	}
	if cfg.AzureAPIKey == "" {
		return nil, common.NewValidationError("AZURE_CV_API_KEY", "required for the azure provider")
	}
	client := computervision.New(cfg.AzureEndpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.AzureAPIKey)
	return &AzureProvider{client: &client}, nil
}

func (p *AzureProvider) Name() string { return ProviderAzure }

// Recognize submits the image and flattens regions/lines into line blocks.
// The OCR endpoint does not expose per-word confidence, so block and page
// confidence come from a text legibility heuristic.
func (p *AzureProvider) Recognize(ctx context.Context, file []byte, mimeType string) (*Result, error) {
	const op = "recognize_printed_text"
	start := time.Now()

	if err := validateInput(file, mimeType); err != nil {
		return nil, NewProviderError(ProviderAzure, op, false, fmt.Errorf("%w: %v", ErrMalformedInput, err))
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return nil, NewProviderError(ProviderAzure, op, false,
			fmt.Errorf("%w: mime type %q (azure OCR accepts images only)", ErrMalformedInput, mimeType))
	}

	reader := io.NopCloser(bytes.NewReader(file))
	result, err := p.client.RecognizePrintedTextInStream(ctx, true, reader, computervision.OcrLanguages(computervision.En))
	if err != nil {
		return nil, NewProviderError(ProviderAzure, op, azureRetryable(err), fmt.Errorf("%w: %v", ErrVendorUnavailable, err))
	}

	page := Page{Number: 1}
	var pageText strings.Builder
	if result.Regions != nil {
		for _, region := range *result.Regions {
			if region.Lines == nil {
				continue
			}
			for _, line := range *region.Lines {
				text := azureLineText(line)
				if text == "" {
					continue
				}
				if pageText.Len() > 0 {
					pageText.WriteByte('\n')
				}
				pageText.WriteString(text)
				page.Blocks = append(page.Blocks, Block{
					Text:        text,
					BBox:        parseAzureBBox(line.BoundingBox),
					Confidence:  legibilityConfidence(text),
					Granularity: GranularityLine,
				})
			}
		}
	}
	page.Text = pageText.String()
	page.Confidence = averageConfidence(page.Blocks)

	return &Result{
		Provider: ProviderAzure,
		Duration: time.Since(start),
		Pages:    []Page{page},
	}, nil
}

func azureLineText(line computervision.OcrLine) string {
	if line.Words == nil {
		return ""
	}
	var b strings.Builder
	for _, word := range *line.Words {
		if word.Text == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(*word.Text)
	}
	return b.String()
}

// parseAzureBBox parses the "x,y,width,height" bounding box string.
func parseAzureBBox(s *string) entity.BBox {
	if s == nil {
		return entity.BBox{}
	}
	parts := strings.Split(*s, ",")
	if len(parts) < 4 {
		return entity.BBox{}
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return entity.BBox{}
		}
		vals[i] = v
	}
	return entity.BBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
}

// azureRetryable classifies vendor failures: throttling and server faults
// are worth a retry, other request errors are not.
func azureRetryable(err error) bool {
	var de autorest.DetailedError
	if !errors.As(err, &de) {
		return true // transport-level failure
	}
	if code, ok := de.StatusCode.(int); ok {
		return code == 429 || code >= 500
	}
	return true
}

// legibilityConfidence estimates recognition trust from text shape: mostly
// printable word-forming characters score high, noise-heavy output scores
// low. Used where the vendor reports no confidence of its own.
func legibilityConfidence(text string) float32 {
	if text == "" {
		return 0
	}
	var wordChars, total int
	for _, r := range text {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '.', r == ',', r == '-':
			wordChars++
		}
	}
	score := float32(wordChars) / float32(total)
	// OCR noise rarely survives as long runs; reward substance.
	if len(text) >= 12 {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}
