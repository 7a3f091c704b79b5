package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// TesseractProvider is the local/offline engine. Images go straight to
// tesseract; PDFs are rasterized page by page with pdftoppm first.
type TesseractProvider struct {
	langs    []string
	dpi      int
	pdftoppm string
	runner   Runner

	clientFactory func() *gosseract.Client
}

// NewTesseractProvider constructs the local engine. It has no credentials to
// fail fast on; a missing tesseract installation surfaces at Recognize time.
func NewTesseractProvider(cfg common.OCRConfig) *TesseractProvider {
	langs := strings.Split(cfg.TesseractLangs, "+")
	if len(langs) == 1 && langs[0] == "" {
		langs = []string{"eng"}
	}
	dpi := cfg.TesseractDPI
	if dpi <= 0 {
		dpi = 300
	}
	return &TesseractProvider{
		langs:         langs,
		dpi:           dpi,
		pdftoppm:      "pdftoppm",
		runner:        execRunner{},
		clientFactory: gosseract.NewClient,
	}
}

func (p *TesseractProvider) Name() string { return ProviderTesseract }

// Recognize dispatches on MIME type: PDF inputs are rasterized to one PNG
// per page, image inputs are enhanced and recognized directly.
func (p *TesseractProvider) Recognize(ctx context.Context, file []byte, mimeType string) (*Result, error) {
	const op = "recognize"
	start := time.Now()

	if err := validateInput(file, mimeType); err != nil {
		return nil, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("%w: %v", ErrMalformedInput, err))
	}

	var (
		pages []Page
		err   error
	)
	switch {
	case constants.IsPDFMIMEType(mimeType):
		pages, err = p.recognizePDF(ctx, file)
	case strings.HasPrefix(constants.NormalizeMIMEType(mimeType), "image/"):
		var page Page
		page, err = p.recognizeImage(ctx, file, 1)
		pages = []Page{page}
	default:
		return nil, NewProviderError(ProviderTesseract, op, false,
			fmt.Errorf("%w: mime type %q", ErrMalformedInput, mimeType))
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Provider: ProviderTesseract,
		Duration: time.Since(start),
		Pages:    pages,
	}, nil
}

func (p *TesseractProvider) recognizeImage(ctx context.Context, data []byte, pageNumber int) (Page, error) {
	const op = "image_ocr"

	if err := ctx.Err(); err != nil {
		return Page{}, NewProviderError(ProviderTesseract, op, true, err)
	}

	enhanced, err := enhanceForOCR(data)
	if err != nil {
		return Page{}, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("%w: %v", ErrMalformedInput, err))
	}

	c := p.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(enhanced); err != nil {
		return Page{}, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("%w: set image: %v", ErrMalformedInput, err))
	}
	if err := c.SetLanguage(p.langs...); err != nil {
		return Page{}, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("set languages: %w", err))
	}
	if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(p.dpi)); err != nil {
		return Page{}, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("set dpi: %w", err))
	}

	text, err := c.Text()
	if err != nil {
		// A broken local install will not fix itself on retry.
		return Page{}, NewProviderError(ProviderTesseract, op, false, fmt.Errorf("recognize text: %w", err))
	}

	page := Page{Number: pageNumber, Text: strings.TrimSpace(text)}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil {
		for _, b := range boxes {
			line := strings.TrimSpace(b.Word)
			if line == "" {
				continue
			}
			page.Blocks = append(page.Blocks, Block{
				Text: line,
				BBox: entity.BBox{
					X:      float64(b.Box.Min.X),
					Y:      float64(b.Box.Min.Y),
					Width:  float64(b.Box.Dx()),
					Height: float64(b.Box.Dy()),
				},
				Confidence:  float32(b.Confidence / 100.0),
				Granularity: GranularityLine,
			})
		}
	}
	page.Confidence = averageConfidence(page.Blocks)
	return page, nil
}

// recognizePDF renders each PDF page to PNG with pdftoppm, then runs the
// image path per page.
func (p *TesseractProvider) recognizePDF(ctx context.Context, file []byte) ([]Page, error) {
	const op = "pdf_ocr"

	tmpDir, err := os.MkdirTemp("", "docintel-ocr-*")
	if err != nil {
		return nil, NewProviderError(ProviderTesseract, op, true, err)
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(src, file, 0o600); err != nil {
		return nil, NewProviderError(ProviderTesseract, op, true, err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := p.runner.Run(ctx, p.pdftoppm, "-r", fmt.Sprint(p.dpi), "-png", src, prefix)
	if err != nil {
		return nil, NewProviderError(ProviderTesseract, op, false,
			fmt.Errorf("%w: pdftoppm: %v: %s", ErrMalformedInput, err, truncate(string(errb), 512)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)

	pages := make([]Page, 0, len(matches))
	for i, img := range matches {
		data, err := os.ReadFile(img)
		if err != nil {
			return nil, NewProviderError(ProviderTesseract, op, true, err)
		}
		page, err := p.recognizeImage(ctx, data, i+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
