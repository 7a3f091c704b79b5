package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/repository"
)

type fakeJobRepo struct {
	transitionErr error
	lastEvent     *entity.AuditEvent
	lastFrom      constants.JobStatus
	lastTo        constants.JobStatus
}

func (f *fakeJobRepo) Create(context.Context, *entity.DocumentJob) error { return nil }
func (f *fakeJobRepo) GetByID(context.Context, uuid.UUID, uuid.UUID) (*entity.DocumentJob, error) {
	return nil, nil
}
func (f *fakeJobRepo) Transition(_ context.Context, _, _ uuid.UUID, from, to constants.JobStatus,
	_ *string, event *entity.AuditEvent) error {
	f.lastFrom, f.lastTo, f.lastEvent = from, to, event
	return f.transitionErr
}
func (f *fakeJobRepo) ListPendingBefore(context.Context, time.Time, int) ([]*entity.DocumentJob, error) {
	return nil, nil
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to constants.JobStatus
		want     bool
	}{
		{constants.JobStatusPending, constants.JobStatusProcessing, true},
		{constants.JobStatusProcessing, constants.JobStatusCompleted, true},
		{constants.JobStatusProcessing, constants.JobStatusFailed, true},
		{constants.JobStatusProcessing, constants.JobStatusNeedsReview, true},
		{constants.JobStatusPending, constants.JobStatusCompleted, false},
		{constants.JobStatusPending, constants.JobStatusFailed, false},
		{constants.JobStatusCompleted, constants.JobStatusProcessing, false},
		{constants.JobStatusFailed, constants.JobStatusPending, false},
		{constants.JobStatusNeedsReview, constants.JobStatusCompleted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestEventForStatus(t *testing.T) {
	cases := map[constants.JobStatus]constants.EventType{
		constants.JobStatusProcessing:  constants.EventProcessingStarted,
		constants.JobStatusCompleted:   constants.EventProcessingCompleted,
		constants.JobStatusFailed:      constants.EventProcessingFailed,
		constants.JobStatusNeedsReview: constants.EventReviewRequired,
	}
	for status, want := range cases {
		if got := EventForStatus(status); got != want {
			t.Errorf("EventForStatus(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestTransitionerRejectsIllegalMove(t *testing.T) {
	repo := &fakeJobRepo{}
	tr := NewTransitioner(repo, nil)
	job := &entity.DocumentJob{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		CorrelationID: uuid.New(),
		Status:        constants.JobStatusPending,
	}

	err := tr.To(context.Background(), job, constants.JobStatusCompleted, nil, nil)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if repo.lastEvent != nil {
		t.Fatal("illegal transition must not reach the repository")
	}
	if job.Status != constants.JobStatusPending {
		t.Fatalf("job status mutated on refused transition: %s", job.Status)
	}
}

func TestTransitionerAdvancesStatusAndBuildsEvent(t *testing.T) {
	repo := &fakeJobRepo{}
	tr := NewTransitioner(repo, nil)
	job := &entity.DocumentJob{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		CorrelationID: uuid.New(),
		Status:        constants.JobStatusPending,
	}

	err := tr.To(context.Background(), job, constants.JobStatusProcessing,
		map[string]any{"provider": "tesseract"}, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if job.Status != constants.JobStatusProcessing {
		t.Fatalf("expected processing, got %s", job.Status)
	}
	ev := repo.lastEvent
	if ev == nil {
		t.Fatal("no audit event built")
	}
	if ev.EventType != constants.EventProcessingStarted {
		t.Fatalf("expected PROCESSING_STARTED, got %s", ev.EventType)
	}
	if ev.CorrelationID != job.CorrelationID || ev.AggregateID != job.ID {
		t.Fatalf("event not bound to job: %+v", ev)
	}
	if ev.AggregateType != constants.AggregateDocumentJob {
		t.Fatalf("wrong aggregate type: %s", ev.AggregateType)
	}
}

func TestTransitionerLeavesStatusOnRepoFailure(t *testing.T) {
	repo := &fakeJobRepo{transitionErr: repository.ErrStatusConflict}
	tr := NewTransitioner(repo, nil)
	job := &entity.DocumentJob{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		CorrelationID: uuid.New(),
		Status:        constants.JobStatusPending,
	}

	err := tr.To(context.Background(), job, constants.JobStatusProcessing, nil, nil)
	if !errors.Is(err, repository.ErrStatusConflict) {
		t.Fatalf("expected conflict to surface, got %v", err)
	}
	if job.Status != constants.JobStatusPending {
		t.Fatalf("in-memory status advanced despite failure: %s", job.Status)
	}
}
