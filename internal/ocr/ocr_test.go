package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/docuplane/docintel/internal/common"
)

func TestNewProviderUnknownName(t *testing.T) {
	_, err := NewProvider(context.Background(), common.OCRConfig{Provider: "clippy"})
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown provider, got %v", err)
	}
}

func TestNewProviderDocumentAIMissingConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), common.OCRConfig{Provider: "documentai"})
	if err == nil {
		t.Fatal("expected error without project/location/processor config")
	}
}

func TestNewProviderAzureMissingCredentials(t *testing.T) {
	_, err := NewProvider(context.Background(), common.OCRConfig{Provider: "azure"})
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError without endpoint/key, got %v", err)
	}
}

func TestNewProviderTesseract(t *testing.T) {
	p, err := NewProvider(context.Background(), common.OCRConfig{
		Provider:       "tesseract",
		TesseractLangs: "eng+deu",
	})
	if err != nil {
		t.Fatalf("tesseract construction: %v", err)
	}
	if p.Name() != ProviderTesseract {
		t.Fatalf("expected provider name %q, got %q", ProviderTesseract, p.Name())
	}
}

func TestProviderErrorRetryableContract(t *testing.T) {
	transient := NewProviderError("azure", "recognize", true, ErrVendorUnavailable)
	if !common.IsRetryable(transient) {
		t.Fatal("transient provider error must be retryable")
	}
	if common.ErrorKind(transient) != "ocr_provider" {
		t.Fatalf("wrong kind: %s", common.ErrorKind(transient))
	}

	permanent := NewProviderError("azure", "recognize", false, ErrMalformedInput)
	if common.IsRetryable(permanent) {
		t.Fatal("malformed-input error must not be retryable")
	}
	if !errors.Is(permanent, ErrMalformedInput) {
		t.Fatal("sentinel lost from the chain")
	}
}

func TestAverageConfidence(t *testing.T) {
	if got := averageConfidence(nil); got != 0 {
		t.Fatalf("empty blocks: expected 0, got %f", got)
	}
	blocks := []Block{{Confidence: 0.5}, {Confidence: 1.0}}
	if got := averageConfidence(blocks); got != 0.75 {
		t.Fatalf("expected 0.75, got %f", got)
	}
}

func TestValidateInput(t *testing.T) {
	if err := validateInput(nil, "application/pdf"); err == nil {
		t.Fatal("empty buffer must be rejected")
	}
	if err := validateInput([]byte("x"), ""); err == nil {
		t.Fatal("missing mime type must be rejected")
	}
	if err := validateInput([]byte("x"), "image/png"); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}
