package model

import "time"

// JobStatus is the lifecycle state of an OCR job. Transitions are monotonic:
// processing moves to complete or error and never back.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Valid reports whether s is a known job status. Records read back from the
// job-list file are validated with this before use.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusProcessing, JobStatusComplete, JobStatusError:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Job types
const (
	JobTypeOCR = "ocr"
)

// JobRecord tracks one asynchronous OCR request across scheduler invocations.
// Records live in a single JSON file in the notebook folder and are rewritten
// wholesale on every update.
type JobRecord struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Filename       string    `json:"filename"`
	SourceFileRef  string    `json:"source_file_ref"`
	ObjectKey      string    `json:"object_key,omitempty"`
	RemoteTaskID   string    `json:"remote_task_id,omitempty"`
	Status         JobStatus `json:"status"`
	MarkdownFileID string    `json:"markdown_file_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
