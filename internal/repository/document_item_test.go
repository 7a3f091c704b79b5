package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/entity"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE document_items (
		id                        TEXT PRIMARY KEY,
		tenant_id                 TEXT NOT NULL,
		document_job_id           TEXT NOT NULL,
		item_index                INTEGER NOT NULL,
		item_type                 TEXT NOT NULL,
		raw_text                  TEXT NOT NULL,
		ocr_confidence            REAL NOT NULL,
		ocr_provider              TEXT NOT NULL,
		normalized_text           TEXT,
		normalization_confidence  REAL,
		extraction_confidence     REAL NOT NULL,
		flags                     BLOB,
		evidence                  BLOB NOT NULL,
		structured_data           BLOB,
		is_reviewed               INTEGER NOT NULL DEFAULT 0,
		reviewed_at               TIMESTAMP,
		reviewed_by_user_id       TEXT,
		corrected_text            TEXT,
		review_notes              TEXT,
		created_at                TIMESTAMP NOT NULL
	);`); err != nil {
		t.Fatalf("create document_items: %v", err)
	}
	return db
}

func makeItem(tenantID, jobID uuid.UUID, index int, text string) entity.DocumentItem {
	return entity.DocumentItem{
		TenantID:             tenantID,
		DocumentJobID:        jobID,
		ItemIndex:            index,
		ItemType:             "line_item",
		RawText:              text,
		OCRConfidence:        0.9,
		OCRProvider:          "tesseract",
		ExtractionConfidence: 0.8,
		Evidence: entity.Evidence{
			Page: 1,
			BBox: entity.BBox{X: 10, Y: 20, Width: 100, Height: 15},
		},
	}
}

func TestReplaceForJobIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	tenantID := uuid.New()
	jobID := uuid.New()
	items := []entity.DocumentItem{
		makeItem(tenantID, jobID, 0, "widget A"),
		makeItem(tenantID, jobID, 1, "widget B"),
	}

	for run := 0; run < 2; run++ {
		// fresh IDs each delivery, as a redelivered run would produce
		for i := range items {
			items[i].ID = uuid.Nil
		}
		if err := repo.ReplaceForJob(ctx, tenantID, jobID, items); err != nil {
			t.Fatalf("replace run %d: %v", run, err)
		}
	}

	got, err := repo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items after double persist, got %d", len(got))
	}
	if got[0].RawText != "widget A" || got[1].RawText != "widget B" {
		t.Fatalf("unexpected item texts: %q, %q", got[0].RawText, got[1].RawText)
	}
}

func TestReplaceForJobReplacesPriorSet(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	tenantID := uuid.New()
	jobID := uuid.New()

	v1 := []entity.DocumentItem{
		makeItem(tenantID, jobID, 0, "old one"),
		makeItem(tenantID, jobID, 1, "old two"),
		makeItem(tenantID, jobID, 2, "old three"),
	}
	if err := repo.ReplaceForJob(ctx, tenantID, jobID, v1); err != nil {
		t.Fatalf("persist v1: %v", err)
	}

	v2 := []entity.DocumentItem{makeItem(tenantID, jobID, 0, "new one")}
	if err := repo.ReplaceForJob(ctx, tenantID, jobID, v2); err != nil {
		t.Fatalf("persist v2: %v", err)
	}

	got, err := repo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item after replacement, got %d", len(got))
	}
	if got[0].RawText != "new one" {
		t.Fatalf("expected replacement item, got %q", got[0].RawText)
	}
}

func TestReplaceForJobEmptySetClears(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	tenantID := uuid.New()
	jobID := uuid.New()

	if err := repo.ReplaceForJob(ctx, tenantID, jobID, []entity.DocumentItem{
		makeItem(tenantID, jobID, 0, "ephemeral"),
	}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := repo.ReplaceForJob(ctx, tenantID, jobID, nil); err != nil {
		t.Fatalf("persist empty: %v", err)
	}

	got, err := repo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 items after empty persist, got %d", len(got))
	}
}

func TestReplaceForJobTenantIsolation(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	// same job_id for both tenants, deliberately
	jobID := uuid.New()
	tenantA := uuid.New()
	tenantB := uuid.New()

	if err := repo.ReplaceForJob(ctx, tenantA, jobID, []entity.DocumentItem{
		makeItem(tenantA, jobID, 0, "tenant A item"),
	}); err != nil {
		t.Fatalf("persist tenant A: %v", err)
	}
	if err := repo.ReplaceForJob(ctx, tenantB, jobID, []entity.DocumentItem{
		makeItem(tenantB, jobID, 0, "tenant B item"),
	}); err != nil {
		t.Fatalf("persist tenant B: %v", err)
	}

	// clearing tenant A must leave tenant B untouched
	if err := repo.ReplaceForJob(ctx, tenantA, jobID, nil); err != nil {
		t.Fatalf("clear tenant A: %v", err)
	}

	gotB, err := repo.GetByJobID(ctx, jobID, tenantB)
	if err != nil {
		t.Fatalf("get tenant B items: %v", err)
	}
	if len(gotB) != 1 || gotB[0].RawText != "tenant B item" {
		t.Fatalf("tenant B items damaged by tenant A delete: %+v", gotB)
	}
}

func TestReplaceForJobRejectsInvalidEvidence(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	tenantID := uuid.New()
	jobID := uuid.New()

	bad := makeItem(tenantID, jobID, 0, "no evidence")
	bad.Evidence.Page = 0

	if err := repo.ReplaceForJob(ctx, tenantID, jobID, []entity.DocumentItem{bad}); err == nil {
		t.Fatal("expected error for evidence with page 0")
	}

	// the failed transaction must not have cleared or written anything
	got, err := repo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no items after failed insert, got %d", len(got))
	}
}

func TestGetByJobIDRoundTripsLayers(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentItemRepository(db, nil)
	ctx := context.Background()

	tenantID := uuid.New()
	jobID := uuid.New()

	norm := "Widget A"
	normConf := float32(0.7)
	item := makeItem(tenantID, jobID, 0, "W1dget A")
	item.NormalizedText = &norm
	item.NormalizationConfidence = &normConf
	item.Flags = map[string]entity.FlagResult{
		"crossed_out": {Detected: true, Confidence: 0.66},
	}
	item.StructuredData = []byte(`{"qty":3}`)

	if err := repo.ReplaceForJob(ctx, tenantID, jobID, []entity.DocumentItem{item}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := repo.GetByJobID(ctx, jobID, tenantID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	it := got[0]
	if it.NormalizedText == nil || *it.NormalizedText != norm {
		t.Fatalf("normalized text lost: %+v", it.NormalizedText)
	}
	if it.NormalizationConfidence == nil || *it.NormalizationConfidence != normConf {
		t.Fatalf("normalization confidence lost: %+v", it.NormalizationConfidence)
	}
	fr, ok := it.Flags["crossed_out"]
	if !ok || !fr.Detected {
		t.Fatalf("flags lost: %+v", it.Flags)
	}
	if it.Evidence.Page != 1 || it.Evidence.BBox.Width != 100 {
		t.Fatalf("evidence lost: %+v", it.Evidence)
	}
	if string(it.StructuredData) != `{"qty":3}` {
		t.Fatalf("structured data lost: %s", it.StructuredData)
	}
}
