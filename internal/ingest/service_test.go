package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/async"
	"github.com/docuplane/docintel/internal/audit"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// minimal single-page PDF, just enough for MIME sniffing
var pdfBytes = []byte("%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF")

type fakeProfileRepo struct {
	profile *entity.DocumentProfile
}

func (f *fakeProfileRepo) GetByID(_ context.Context, profileID, tenantID uuid.UUID) (*entity.DocumentProfile, error) {
	if f.profile != nil && f.profile.ID == profileID && f.profile.TenantID == tenantID {
		return f.profile, nil
	}
	return nil, nil
}

type fakeJobRepo struct {
	created []*entity.DocumentJob
}

func (f *fakeJobRepo) Create(_ context.Context, job *entity.DocumentJob) error {
	f.created = append(f.created, job)
	return nil
}
func (f *fakeJobRepo) GetByID(context.Context, uuid.UUID, uuid.UUID) (*entity.DocumentJob, error) {
	return nil, nil
}
func (f *fakeJobRepo) Transition(context.Context, uuid.UUID, uuid.UUID,
	constants.JobStatus, constants.JobStatus, *string, *entity.AuditEvent) error {
	return nil
}
func (f *fakeJobRepo) ListPendingBefore(_ context.Context, cutoff time.Time, _ int) ([]*entity.DocumentJob, error) {
	var out []*entity.DocumentJob
	for _, job := range f.created {
		if job.Status == constants.JobStatusPending && job.CreatedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

type fakeStorage struct {
	uploads int
	failErr error
}

func (f *fakeStorage) UploadFile(_ context.Context, tenantID, _ uuid.UUID, _ []byte, filename, _ string) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}
	f.uploads++
	return "file:///store/" + tenantID.String() + "/" + filename, nil
}
func (f *fakeStorage) Download(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeStorage) ContentHash([]byte) []byte                       { return []byte{0x01, 0x02} }

type fakeEventsRepo struct {
	appended []*entity.AuditEvent
}

func (f *fakeEventsRepo) Append(_ context.Context, event *entity.AuditEvent) error {
	f.appended = append(f.appended, event)
	return nil
}
func (f *fakeEventsRepo) ListByCorrelation(context.Context, uuid.UUID, uuid.UUID) ([]entity.AuditEvent, error) {
	return nil, nil
}

type fakeQueue struct {
	enqueued []async.Job
	topics   []string
	failErr  error
}

func (f *fakeQueue) Enqueue(_ context.Context, topic string, job async.Job) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.topics = append(f.topics, topic)
	f.enqueued = append(f.enqueued, job)
	return nil
}
func (f *fakeQueue) Shutdown(context.Context) {}

type ingestHarness struct {
	svc     *Service
	jobs    *fakeJobRepo
	store   *fakeStorage
	events  *fakeEventsRepo
	queue   *fakeQueue
	profile *entity.DocumentProfile
}

func newHarness(t *testing.T) *ingestHarness {
	t.Helper()
	profile := &entity.DocumentProfile{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "invoices",
		Active:   true,
		ItemTypes: []entity.ProfileItemType{
			{Name: "total", Patterns: []entity.DetectionPattern{
				{Kind: entity.PatternKeyword, Value: "total"},
			}},
		},
		RetentionDays: 30,
	}
	jobs := &fakeJobRepo{}
	store := &fakeStorage{}
	events := &fakeEventsRepo{}
	queue := &fakeQueue{}
	svc := NewService(nil, &fakeProfileRepo{profile: profile}, jobs, store,
		audit.NewService(events, nil), queue)
	return &ingestHarness{svc: svc, jobs: jobs, store: store, events: events, queue: queue, profile: profile}
}

func (h *ingestHarness) request() IngestRequest {
	return IngestRequest{
		TenantID:          h.profile.TenantID,
		IntegrationID:     uuid.New(),
		DocumentProfileID: h.profile.ID,
		Filename:          "invoice.pdf",
		MimeType:          "application/pdf",
		Content:           pdfBytes,
	}
}

func TestIngestDocumentAccepted(t *testing.T) {
	h := newHarness(t)

	acc, err := h.svc.IngestDocument(context.Background(), h.request())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if acc.Status != constants.JobStatusPending {
		t.Fatalf("expected pending, got %s", acc.Status)
	}
	if acc.JobID == uuid.Nil || acc.CorrelationID == uuid.Nil {
		t.Fatalf("acceptance missing identifiers: %+v", acc)
	}
	if acc.EstimatedCompletionSeconds <= 0 {
		t.Fatalf("expected a positive completion estimate, got %d", acc.EstimatedCompletionSeconds)
	}

	if len(h.jobs.created) != 1 {
		t.Fatalf("expected 1 job row, got %d", len(h.jobs.created))
	}
	job := h.jobs.created[0]
	if job.Status != constants.JobStatusPending || job.StoragePath == "" {
		t.Fatalf("job row incomplete: %+v", job)
	}
	if job.StorageRetentionDays != 30 {
		t.Fatalf("expected profile retention 30, got %d", job.StorageRetentionDays)
	}
	if len(job.ContentHash) == 0 {
		t.Fatal("job missing content hash")
	}

	if len(h.events.appended) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(h.events.appended))
	}
	ev := h.events.appended[0]
	if ev.EventType != constants.EventDocumentReceived {
		t.Fatalf("expected DOCUMENT_RECEIVED, got %s", ev.EventType)
	}
	if ev.CorrelationID != acc.CorrelationID || ev.AggregateID != acc.JobID {
		t.Fatalf("event not bound to the accepted job: %+v", ev)
	}

	if len(h.queue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(h.queue.enqueued))
	}
	if h.queue.topics[0] != constants.TopicDocumentProcess {
		t.Fatalf("wrong topic: %s", h.queue.topics[0])
	}
	msg := h.queue.enqueued[0]
	if msg.JobID != acc.JobID || msg.TenantID != h.profile.TenantID {
		t.Fatalf("message not keyed by (job, tenant): %+v", msg)
	}
}

func TestIngestRejectsDisallowedMIME(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.MimeType = "application/zip"
	req.Content = []byte("PK\x03\x04 not really a zip but close enough")

	_, err := h.svc.IngestDocument(context.Background(), req)
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if len(h.jobs.created) != 0 {
		t.Fatal("rejected ingest created a job row")
	}
	if len(h.events.appended) != 0 {
		t.Fatal("rejected ingest emitted an audit event")
	}
	if h.store.uploads != 0 {
		t.Fatal("rejected ingest uploaded the file")
	}
	if len(h.queue.enqueued) != 0 {
		t.Fatal("rejected ingest enqueued a message")
	}
}

func TestIngestRejectsContentMismatch(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	// declared PDF, actual bytes are a PNG header
	req.Content = []byte("\x89PNG\r\n\x1a\n0000000000")

	_, err := h.svc.IngestDocument(context.Background(), req)
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for sniff mismatch, got %v", err)
	}
	if h.store.uploads != 0 || len(h.jobs.created) != 0 {
		t.Fatal("mismatched content must not be uploaded or recorded")
	}
}

func TestIngestRejectsInactiveProfile(t *testing.T) {
	h := newHarness(t)
	h.profile.Active = false

	_, err := h.svc.IngestDocument(context.Background(), h.request())
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for inactive profile, got %v", err)
	}
	if h.store.uploads != 0 {
		t.Fatal("inactive profile must fail before upload")
	}
}

func TestIngestRejectsUnknownProfile(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.DocumentProfileID = uuid.New()

	_, err := h.svc.IngestDocument(context.Background(), req)
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown profile, got %v", err)
	}
}

func TestIngestStorageFailureLeavesNoState(t *testing.T) {
	h := newHarness(t)
	h.store.failErr = &common.StorageError{Op: "upload", Err: errors.New("bucket gone")}

	_, err := h.svc.IngestDocument(context.Background(), h.request())
	var se *common.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(h.jobs.created) != 0 {
		t.Fatal("failed upload must not create a job")
	}
	if len(h.events.appended) != 0 || len(h.queue.enqueued) != 0 {
		t.Fatal("failed upload must not emit events or enqueue")
	}
}

func TestRequeueStalePendingRecoversOrphanedJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// the enqueue fails after the job row was created, stranding it in pending
	h.queue.failErr = errors.New("queue is shut down")
	if _, err := h.svc.IngestDocument(ctx, h.request()); err == nil {
		t.Fatal("expected the failed enqueue to surface")
	}
	if len(h.jobs.created) != 1 {
		t.Fatalf("expected the job row to exist, got %d", len(h.jobs.created))
	}
	if len(h.queue.enqueued) != 0 {
		t.Fatalf("expected no message, got %d", len(h.queue.enqueued))
	}

	job := h.jobs.created[0]
	job.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
	h.queue.failErr = nil

	n, err := h.svc.RequeueStalePending(ctx, 5*time.Minute, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued job, got %d", n)
	}
	if len(h.queue.enqueued) != 1 || h.queue.enqueued[0].JobID != job.ID {
		t.Fatalf("unexpected messages: %+v", h.queue.enqueued)
	}
	if h.queue.enqueued[0].CorrelationID != job.CorrelationID {
		t.Fatal("requeued message must carry the job's correlation id")
	}
}

func TestRequeueStalePendingSkipsFreshJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.IngestDocument(ctx, h.request()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	h.jobs.created[0].CreatedAt = time.Now().UTC()

	n, err := h.svc.RequeueStalePending(ctx, 5*time.Minute, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("fresh pending job must not be requeued, got %d", n)
	}
	if len(h.queue.enqueued) != 1 {
		t.Fatalf("expected only the original message, got %d", len(h.queue.enqueued))
	}
}
