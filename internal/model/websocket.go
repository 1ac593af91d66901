package model

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
)

// WSStatusMessage is pushed to subscribers whenever a job record transitions.
type WSStatusMessage struct {
	Type           string    `json:"type"`
	JobID          string    `json:"jobId"`
	Status         JobStatus `json:"status"`
	MarkdownFileID string    `json:"markdownFileId,omitempty"`
}

// WSErrorMessage reports a failed job to subscribers.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
