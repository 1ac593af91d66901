package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/model"
	"github.com/scribesync/api/internal/store"
	ws "github.com/scribesync/api/internal/websocket"
)

// ErrOCRUnavailable marks infrastructure failures talking to the OCR
// service, as opposed to the service reporting a failed recognition.
var ErrOCRUnavailable = errors.New("OCR service unavailable")

// presignExpiry must outlive the recognition queueing delay at the OCR
// service, not the whole recognition.
const presignExpiry = 30 * time.Minute

// OCRService dispatches notebook PDFs to the asynchronous OCR service and
// polls recognition state on behalf of the external scheduler. All durable
// state lives in the job store; both operations are safe to repeat.
type OCRService struct {
	jobs       *store.JobStore
	library    *Library
	objects    client.ObjectStorage
	recognizer client.TextRecognizer
	keyPrefix  string
	hub        *ws.Hub
}

func NewOCRService(jobs *store.JobStore, library *Library, objects client.ObjectStorage, recognizer client.TextRecognizer, keyPrefix string, hub *ws.Hub) *OCRService {
	return &OCRService{
		jobs:       jobs,
		library:    library,
		objects:    objects,
		recognizer: recognizer,
		keyPrefix:  keyPrefix,
		hub:        hub,
	}
}

// IsConfigured reports whether both the bucket and the OCR service are set up.
func (s *OCRService) IsConfigured() bool {
	return s.objects != nil && s.recognizer != nil
}

// Dispatch uploads the PDF to object storage, starts a recognition task, and
// registers the tracking record. Any failure before the record is written
// leaves no trace in the job store.
func (s *OCRService) Dispatch(ctx context.Context, filename, sourceFileID string, pdf []byte) (*model.JobRecord, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("OCR pipeline not configured")
	}

	jobID := uuid.New().String()
	objectKey := fmt.Sprintf("%s/%s/%s.pdf", s.keyPrefix, jobID, filename)

	if err := s.objects.Upload(ctx, objectKey, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}

	documentURL, err := s.objects.PresignGet(ctx, objectKey, presignExpiry)
	if err != nil {
		s.cleanupObject(ctx, objectKey)
		return nil, fmt.Errorf("failed to presign PDF: %w", err)
	}

	task, err := s.recognizer.StartRecognition(ctx, &client.RecognitionRequest{DocumentURL: documentURL})
	if err != nil {
		s.cleanupObject(ctx, objectKey)
		return nil, fmt.Errorf("failed to start recognition: %w", err)
	}

	now := time.Now().UTC()
	rec := model.JobRecord{
		ID:            jobID,
		Type:          model.JobTypeOCR,
		Filename:      filename,
		SourceFileRef: sourceFileID,
		ObjectKey:     objectKey,
		RemoteTaskID:  task.TaskID,
		Status:        model.JobStatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobs.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to register job: %w", err)
	}

	log.Printf("[OCR] dispatched job %s for %q (task %s)", jobID, filename, task.TaskID)
	return &rec, nil
}

// Poll checks one job. Terminal records are returned as-is: repeated polls of
// a completed job never touch Drive or the OCR service again.
func (s *OCRService) Poll(ctx context.Context, jobID string) (*model.PollResponse, error) {
	rec, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if rec.Status.Terminal() {
		return pollResponse(rec), nil
	}

	result, err := s.recognizer.GetRecognition(ctx, rec.RemoteTaskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}

	switch result.State {
	case client.RecognitionStateSucceeded:
		return s.complete(ctx, rec, result)
	case client.RecognitionStateFailed:
		return s.fail(ctx, rec, result.Error)
	default:
		return pollResponse(rec), nil
	}
}

// ListJobs returns every tracking record.
func (s *OCRService) ListJobs(ctx context.Context) ([]model.JobRecord, error) {
	return s.jobs.GetJobs(ctx)
}

func (s *OCRService) complete(ctx context.Context, rec *model.JobRecord, result *client.RecognitionResult) (*model.PollResponse, error) {
	markdown := renderNotebookMarkdown(rec.Filename, result.Text())
	mdFileID, err := s.library.SaveNotebookFile(ctx, rec.Filename+".md", "text/markdown", []byte(markdown))
	if err != nil {
		// Record stays processing; the next poll retries the upload.
		return nil, fmt.Errorf("failed to save markdown: %w", err)
	}

	rec.Status = model.JobStatusComplete
	rec.MarkdownFileID = mdFileID
	if err := s.jobs.Update(ctx, *rec); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.cleanupObject(ctx, rec.ObjectKey)
	if s.hub != nil {
		s.hub.BroadcastStatus(rec.ID, rec.Status, mdFileID)
	}
	log.Printf("[OCR] job %s complete, markdown %s", rec.ID, mdFileID)
	return pollResponse(rec), nil
}

func (s *OCRService) fail(ctx context.Context, rec *model.JobRecord, message string) (*model.PollResponse, error) {
	if message == "" {
		message = "recognition failed"
	}
	rec.Status = model.JobStatusError
	rec.Error = message
	if err := s.jobs.Update(ctx, *rec); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastError(rec.ID, "OCR_FAILED", message)
	}
	log.Printf("[OCR] job %s failed: %s", rec.ID, message)
	return pollResponse(rec), nil
}

func (s *OCRService) cleanupObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		log.Printf("[OCR] failed to delete object %s: %v", key, err)
	}
}

func pollResponse(rec *model.JobRecord) *model.PollResponse {
	return &model.PollResponse{
		JobID:          rec.ID,
		Status:         rec.Status,
		Filename:       rec.Filename,
		MarkdownFileID: rec.MarkdownFileID,
		Error:          rec.Error,
	}
}

// renderNotebookMarkdown builds the artifact saved beside the source PDF.
func renderNotebookMarkdown(filename, text string) string {
	var sb bytes.Buffer
	sb.WriteString("# ")
	sb.WriteString(filename)
	sb.WriteString("\n\n")
	sb.WriteString("_Converted from ")
	sb.WriteString(filename)
	sb.WriteString(".pdf_\n\n")
	sb.WriteString(text)
	if len(text) > 0 && text[len(text)-1] != '\n' {
		sb.WriteString("\n")
	}
	return sb.String()
}
