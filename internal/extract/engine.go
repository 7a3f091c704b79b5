// Package extract turns normalized OCR output and a document profile into
// ordered, evidence-backed document items. Pattern matching and confidence
// computation are synchronous and in-memory; nothing here blocks.
package extract

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/ocr"
)

// Engine maps a profile's declared item types plus OCR blocks into document
// item candidates. The engine never persists anything.
type Engine struct {
	logger    *slog.Logger
	detectors []FlagDetector
}

// NewEngine builds an engine with the given flag detectors; a nil or empty
// set installs the defaults.
func NewEngine(logger *slog.Logger, detectors ...FlagDetector) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(detectors) == 0 {
		detectors = DefaultFlagDetectors()
	}
	return &Engine{logger: logger, detectors: detectors}
}

// Extract produces the ordered item candidates for one OCR result. Zero
// matches and zero pages both yield an empty list, not an error; a malformed
// profile is a ValidationError raised before any block is read.
func (e *Engine) Extract(res *ocr.Result, profile *entity.DocumentProfile, tenantID, jobID uuid.UUID) ([]entity.DocumentItem, error) {
	types, err := compileProfile(profile)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Pages) == 0 {
		return []entity.DocumentItem{}, nil
	}

	items := make([]entity.DocumentItem, 0)
	pages := orderedPages(res.Pages)
	for _, page := range pages {
		blocks := readingOrder(page.Blocks)
		for _, block := range blocks {
			for _, it := range types {
				match, ok := matchBlock(it, block)
				if !ok {
					continue
				}
				item := e.buildItem(res, page, block, it.name, match, tenantID, jobID)
				item.ItemIndex = len(items)
				items = append(items, item)
			}
		}
	}

	e.logger.Debug("extraction complete",
		"job_id", jobID,
		"pages", len(res.Pages),
		"item_types", len(types),
		"items", len(items),
	)
	return items, nil
}

// blockMatch is the outcome of one pattern hit on one block.
type blockMatch struct {
	strength float32
	captures map[string]string
}

// matchBlock tries every pattern of one item type against a block and keeps
// the strongest hit.
func matchBlock(it compiledItemType, block ocr.Block) (blockMatch, bool) {
	best := blockMatch{}
	found := false
	for _, p := range it.patterns {
		m, ok := matchPattern(p, block.Text)
		if ok && (!found || m.strength > best.strength) {
			best = m
			found = true
		}
	}
	return best, found
}

func matchPattern(p compiledPattern, text string) (blockMatch, bool) {
	weight := p.spec.Weight
	if weight == 0 {
		weight = 1
	}
	if p.re != nil {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			return blockMatch{}, false
		}
		captures := map[string]string{}
		for i, name := range p.re.SubexpNames() {
			if name != "" && i < len(m) && m[i] != "" {
				captures[name] = m[i]
			}
		}
		return blockMatch{strength: clampStrength(0.85 * weight), captures: captures}, true
	}

	// Keyword patterns: case-insensitive containment; longer keywords in
	// shorter blocks are stronger evidence.
	if !containsFold(text, p.spec.Value) {
		return blockMatch{}, false
	}
	coverage := float32(len(p.spec.Value)) / float32(len(text))
	if coverage > 1 {
		coverage = 1
	}
	return blockMatch{strength: clampStrength((0.6 + 0.3*coverage) * weight)}, true
}

func (e *Engine) buildItem(res *ocr.Result, page ocr.Page, block ocr.Block, itemType string, match blockMatch, tenantID, jobID uuid.UUID) entity.DocumentItem {
	item := entity.DocumentItem{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		DocumentJobID:        jobID,
		ItemType:             itemType,
		RawText:              block.Text,
		OCRConfidence:        clampStrength(minContributingConfidence(block)),
		OCRProvider:          res.Provider,
		ExtractionConfidence: match.strength,
		Evidence: entity.Evidence{
			Page: page.Number,
			BBox: usableBBox(block.BBox),
		},
	}

	if norm, conf := normalizeText(block.Text); norm != "" && norm != block.Text {
		item.NormalizedText = &norm
		item.NormalizationConfidence = &conf
	}

	if len(match.captures) > 0 {
		// Named regex captures become the domain payload; the core never
		// interprets them.
		if raw, err := json.Marshal(match.captures); err == nil {
			item.StructuredData = raw
		}
	}

	item.Flags = make(map[string]entity.FlagResult, len(e.detectors))
	for _, d := range e.detectors {
		flag, err := d.Detect(block, page)
		if err != nil {
			// A failed detector omits its flag; it never sinks the item.
			e.logger.Debug("flag detector failed", "flag", d.Name(), "error", err)
			continue
		}
		item.Flags[d.Name()] = flag
	}
	return item
}

// minContributingConfidence is conservative: one garbled block invalidates
// trust in the whole item. With single-block matches this is the block
// confidence; zero-confidence vendors fall back to the page average.
func minContributingConfidence(block ocr.Block) float32 {
	return block.Confidence
}

// usableBBox keeps vendor boxes as-is and substitutes a unit box for the
// degenerate ones some vendors emit, so evidence stays valid.
func usableBBox(b entity.BBox) entity.BBox {
	if b.Width <= 0 || b.Height <= 0 {
		return entity.BBox{X: b.X, Y: b.Y, Width: 1, Height: 1}
	}
	return b
}

// orderedPages returns pages sorted by page number ascending.
func orderedPages(pages []ocr.Page) []ocr.Page {
	out := make([]ocr.Page, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// readingOrder sorts blocks top-to-bottom, then left-to-right within a line.
// Blocks whose vertical spans overlap by more than half a line height are
// treated as the same line.
func readingOrder(blocks []ocr.Block) []ocr.Block {
	out := make([]ocr.Block, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BBox, out[j].BBox
		if sameLine(a, b) {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}

func sameLine(a, b entity.BBox) bool {
	top := a.Y
	if b.Y > top {
		top = b.Y
	}
	bottom := a.Y + a.Height
	if other := b.Y + b.Height; other < bottom {
		bottom = other
	}
	overlap := bottom - top
	half := a.Height / 2
	if b.Height/2 < half {
		half = b.Height / 2
	}
	return overlap > half && half > 0
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func clampStrength(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
