package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/repository"
)

// Service is a tiny façade over the item repository that produces XLSX bytes
// for a job's extracted items.
type Service struct {
	itemsRepo repository.DocumentItemRepository
	jobsRepo  repository.DocumentJobRepository
	logger    *slog.Logger
}

func NewService(itemsRepo repository.DocumentItemRepository, jobsRepo repository.DocumentJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{itemsRepo: itemsRepo, jobsRepo: jobsRepo, logger: logger}
}

// ExportJobItemsXLSX returns an XLSX workbook (as bytes) with one row per
// extracted item for the given job.
func (s *Service) ExportJobItemsXLSX(ctx context.Context, tenantID, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobsRepo.GetByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	items, err := s.itemsRepo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Items"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Index",
		"Item Type",
		"Raw Text",
		"Normalized Text",
		"Confidence",
		"Flags",
		"Page",
		"Provider",
		"Reviewed",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for i := range items {
		it := &items[i]

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		normalized := ""
		if it.NormalizedText != nil {
			normalized = *it.NormalizedText
		}

		write(1, it.ItemIndex)
		write(2, it.ItemType)
		write(3, truncate(it.RawText, 200))
		write(4, truncate(normalized, 200))
		write(5, fmt.Sprintf("%.2f", it.Confidence().Overall()))
		write(6, flagSummary(it.Flags))
		write(7, it.Evidence.Page)
		write(8, it.OCRProvider)
		write(9, it.IsReviewed)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "B", 22)
	_ = f.SetColWidth(sheet, "C", "D", 48)
	_ = f.SetColWidth(sheet, "E", "E", 12)
	_ = f.SetColWidth(sheet, "F", "F", 28)
	_ = f.SetColWidth(sheet, "G", "I", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export finished",
		"job_id", jobID, "items", len(items), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// flagSummary renders detected flags as "name(conf)" pairs.
func flagSummary(flags map[string]entity.FlagResult) string {
	var parts []string
	for name, fr := range flags {
		if fr.Detected {
			parts = append(parts, fmt.Sprintf("%s(%.2f)", name, fr.Confidence))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
