package model

// Pipeline status strings returned to the external scheduler. These are part
// of the HTTP contract; the scheduler branches on them.
const (
	StatusSuccess   = "success"
	StatusNoEmail   = "no_email"
	StatusNoFiles   = "no_files"
	StatusQueued    = "queued"
	StatusProcessed = "processed"
	StatusCompleted = "completed"
)

// IntakeResponse summarizes one run over the unread Kindle mailbox.
type IntakeResponse struct {
	Status         string          `json:"status"`
	Message        string          `json:"message,omitempty"`
	FilesProcessed []ProcessedFile `json:"files_processed,omitempty"`
}

// ProcessedFile reports the outcome for a single email. Failed messages carry
// an error instead of file ids and stay unread for the next run.
type ProcessedFile struct {
	Filename  string `json:"filename,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	PDFFileID string `json:"pdf_file_id,omitempty"`
	TxtFileID string `json:"txt_file_id,omitempty"`
	OCRJobID  string `json:"ocr_job_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// PollResponse is the OCR poller reply. Status mirrors the job record; the
// markdown file id is present once the job is complete.
type PollResponse struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	Filename       string    `json:"filename,omitempty"`
	MarkdownFileID string    `json:"markdown_file_id,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// QueueResponse is stage one of the distillation pipeline. TempID and
// OriginalID thread through the process and save stages.
type QueueResponse struct {
	Status       string `json:"status"`
	TempID       string `json:"temp_id,omitempty"`
	OriginalID   string `json:"original_id,omitempty"`
	OriginalFile string `json:"original_file,omitempty"`
}

// ProcessResponse is stage two: the LLM result stored in temp space.
type ProcessResponse struct {
	Status   string `json:"status"`
	ResultID string `json:"result_id"`
}

// SaveResponse is stage three: the markdown saved beside the original.
type SaveResponse struct {
	Status         string `json:"status"`
	MarkdownFileID string `json:"markdown_file_id,omitempty"`
}

// PollRequest carries the poller's query parameters.
type PollRequest struct {
	JobID string `query:"job_id" validate:"required,uuid4"`
}

// ProcessRequest carries stage-two query parameters.
type ProcessRequest struct {
	TempID string `query:"temp_id" validate:"required"`
}

// SaveRequest carries stage-three query parameters.
type SaveRequest struct {
	ResultID   string `query:"result_id" validate:"required"`
	OriginalID string `query:"original_id" validate:"required"`
}
