package ocr

import (
	"context"
	"fmt"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// maxDocumentAIBytes is the Document AI limit for synchronous processing.
const maxDocumentAIBytes = 20 * 1024 * 1024

// DocumentAIProvider recognizes documents through Google Document AI.
type DocumentAIProvider struct {
	client        *documentai.DocumentProcessorClient
	processorName string
}

// NewDocumentAIProvider creates the provider with credentials from the
// environment (GOOGLE_CREDENTIALS inline JSON or
// GOOGLE_APPLICATION_CREDENTIALS file path, then application default).
func NewDocumentAIProvider(ctx context.Context, cfg common.OCRConfig) (*DocumentAIProvider, error) {
	if cfg.GoogleProjectID == "" {
		return nil, common.NewValidationError("GOOGLE_PROJECT_ID", "required for the documentai provider")
	}
	if cfg.GoogleProcessorID == "" {
		return nil, common.NewValidationError("GOOGLE_PROCESSOR_ID", "required for the documentai provider")
	}
	location := cfg.GoogleLocation
	if location == "" {
		location = "us"
	}

	var opts []option.ClientOption
	if location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, common.NewValidationError("GOOGLE_CREDENTIALS", "failed to create Document AI client: %v", err)
	}

	return &DocumentAIProvider{
		client: client,
		processorName: fmt.Sprintf("projects/%s/locations/%s/processors/%s",
			cfg.GoogleProjectID, location, cfg.GoogleProcessorID),
	}, nil
}

func (p *DocumentAIProvider) Name() string { return ProviderDocumentAI }

// Recognize runs synchronous processing and normalizes the Document AI page
// layout into Result pages with line-level blocks.
func (p *DocumentAIProvider) Recognize(ctx context.Context, file []byte, mimeType string) (*Result, error) {
	const op = "process_document"
	start := time.Now()

	if err := validateInput(file, mimeType); err != nil {
		return nil, NewProviderError(ProviderDocumentAI, op, false, fmt.Errorf("%w: %v", ErrMalformedInput, err))
	}
	if len(file) > maxDocumentAIBytes {
		return nil, NewProviderError(ProviderDocumentAI, op, false,
			fmt.Errorf("%w: %d bytes", ErrInputTooLarge, len(file)))
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  file,
				MimeType: mimeType,
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		// Remote faults (rate limits, transport, server errors) are worth a
		// re-enqueue; input problems were filtered above.
		return nil, NewProviderError(ProviderDocumentAI, op, true, fmt.Errorf("%w: %v", ErrVendorUnavailable, err))
	}

	doc := resp.GetDocument()
	pages := make([]Page, 0, len(doc.GetPages()))
	for _, dp := range doc.GetPages() {
		page := Page{
			Number:     int(dp.GetPageNumber()),
			Text:       anchorText(doc.GetText(), dp.GetLayout().GetTextAnchor()),
			Confidence: dp.GetLayout().GetConfidence(),
		}
		if page.Number < 1 {
			page.Number = len(pages) + 1
		}

		// Prefer line granularity; fall back to layout blocks on processors
		// that do not emit lines.
		lines := dp.GetLines()
		if len(lines) > 0 {
			for _, ln := range lines {
				page.Blocks = append(page.Blocks, Block{
					Text:        anchorText(doc.GetText(), ln.GetLayout().GetTextAnchor()),
					BBox:        polyToBBox(ln.GetLayout().GetBoundingPoly()),
					Confidence:  ln.GetLayout().GetConfidence(),
					Granularity: GranularityLine,
				})
			}
		} else {
			for _, blk := range dp.GetBlocks() {
				page.Blocks = append(page.Blocks, Block{
					Text:        anchorText(doc.GetText(), blk.GetLayout().GetTextAnchor()),
					BBox:        polyToBBox(blk.GetLayout().GetBoundingPoly()),
					Confidence:  blk.GetLayout().GetConfidence(),
					Granularity: GranularityBlock,
				})
			}
		}
		if page.Confidence == 0 {
			page.Confidence = averageConfidence(page.Blocks)
		}
		pages = append(pages, page)
	}

	return &Result{
		Provider: ProviderDocumentAI,
		Duration: time.Since(start),
		Pages:    pages,
	}, nil
}

// anchorText resolves a text anchor's segments against the full document
// text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var out []byte
	for _, seg := range anchor.GetTextSegments() {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start >= end {
			continue
		}
		out = append(out, text[start:end]...)
	}
	return string(out)
}

// polyToBBox reduces a bounding polygon to its axis-aligned rectangle.
func polyToBBox(poly *documentaipb.BoundingPoly) entity.BBox {
	verts := poly.GetVertices()
	if len(verts) == 0 {
		return entity.BBox{}
	}
	minX, minY := float64(verts[0].GetX()), float64(verts[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range verts[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	return entity.BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
