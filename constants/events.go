package constants

// EventType names an audit event appended to a job's trail.
type EventType string

const (
	EventDocumentReceived    EventType = "DOCUMENT_RECEIVED"
	EventProcessingStarted   EventType = "PROCESSING_STARTED"
	EventProcessingCompleted EventType = "PROCESSING_COMPLETED"
	EventProcessingFailed    EventType = "PROCESSING_FAILED"
	EventReviewRequired      EventType = "REVIEW_REQUIRED"
)

// AggregateDocumentJob is the aggregate type used on job audit events.
const AggregateDocumentJob = "document_job"

// TopicDocumentProcess is the queue topic for async document processing.
const TopicDocumentProcess = "document.process"
