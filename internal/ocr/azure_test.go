package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/docuplane/docintel/internal/common"
)

func strPtr(s string) *string { return &s }

func TestParseAzureBBox(t *testing.T) {
	bbox := parseAzureBBox(strPtr("12,34,100,20"))
	if bbox.X != 12 || bbox.Y != 34 || bbox.Width != 100 || bbox.Height != 20 {
		t.Fatalf("unexpected bbox: %+v", bbox)
	}

	if got := parseAzureBBox(nil); got.Width != 0 {
		t.Fatalf("nil input must yield zero bbox, got %+v", got)
	}
	if got := parseAzureBBox(strPtr("1,2,3")); got.Width != 0 {
		t.Fatalf("short input must yield zero bbox, got %+v", got)
	}
	if got := parseAzureBBox(strPtr("a,b,c,d")); got.Width != 0 {
		t.Fatalf("garbage input must yield zero bbox, got %+v", got)
	}
	// tolerate spaces after commas
	if got := parseAzureBBox(strPtr("1, 2, 3, 4")); got.Height != 4 {
		t.Fatalf("spaced input not parsed: %+v", got)
	}
}

func TestLegibilityConfidence(t *testing.T) {
	if got := legibilityConfidence(""); got != 0 {
		t.Fatalf("empty text: expected 0, got %f", got)
	}

	clean := legibilityConfidence("Invoice total 14.50 USD")
	noisy := legibilityConfidence("~~##@@!!~~##@@!!")
	if clean <= noisy {
		t.Fatalf("clean text (%f) must score above noise (%f)", clean, noisy)
	}
	if clean < 0 || clean > 1 || noisy < 0 || noisy > 1 {
		t.Fatalf("scores out of range: %f, %f", clean, noisy)
	}
}

func TestAzureRejectsPDFInput(t *testing.T) {
	p, err := NewAzureProvider(common.OCRConfig{
		AzureEndpoint: "https://example.cognitiveservices.azure.com",
		AzureAPIKey:   "key",
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	_, err = p.Recognize(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	if err == nil {
		t.Fatal("expected PDF input to be rejected")
	}
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if common.IsRetryable(err) {
		t.Fatal("unsupported input must not be retryable")
	}
}
