package constants

// JobStatus is the canonical status for rows in document_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending     JobStatus = "pending"      // accepted, waiting for a worker
	JobStatusProcessing  JobStatus = "processing"   // claimed by exactly one worker
	JobStatusCompleted   JobStatus = "completed"    // terminal success
	JobStatusFailed      JobStatus = "failed"       // terminal failure
	JobStatusNeedsReview JobStatus = "needs_review" // processed, but below the review threshold
)

// JobStatuses holds every valid status value, for schema validation.
var JobStatuses = []string{
	string(JobStatusPending),
	string(JobStatusProcessing),
	string(JobStatusCompleted),
	string(JobStatusFailed),
	string(JobStatusNeedsReview),
}

// IsTerminal reports whether automated processing is finished for a status.
// needs_review is terminal here; only the external review workflow moves a
// job out of it.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusNeedsReview:
		return true
	}
	return false
}
