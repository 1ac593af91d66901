package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/model"
)

// maxAttachmentSize caps a single notebook download (PDF or TXT).
const maxAttachmentSize = 100 * 1024 * 1024

// IntakeService drains the unread Kindle mailbox: downloads the exported
// files, saves them to the notebook folder, and hands PDFs to the OCR
// dispatcher. Messages are marked read only after a successful handoff, so a
// failed message is retried on the next scheduler interval.
type IntakeService struct {
	mailbox    client.Mailbox
	library    *Library
	ocr        *OCRService
	downloader *http.Client
}

func NewIntakeService(mailbox client.Mailbox, library *Library, ocr *OCRService) *IntakeService {
	return &IntakeService{
		mailbox:    mailbox,
		library:    library,
		ocr:        ocr,
		downloader: &http.Client{Timeout: 30 * time.Second},
	}
}

// ProcessInbox handles every unread Kindle email in one pass. Per-message
// failures are reported in the response without aborting the batch.
func (s *IntakeService) ProcessInbox(ctx context.Context) (*model.IntakeResponse, error) {
	msgIDs, err := s.mailbox.ListUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	if len(msgIDs) == 0 {
		return &model.IntakeResponse{
			Status:  model.StatusNoEmail,
			Message: "No unread Kindle emails found",
		}, nil
	}

	log.Printf("[Intake] found %d unread messages", len(msgIDs))

	processed := make([]model.ProcessedFile, 0, len(msgIDs))
	seen := make(map[string]bool)

	for _, msgID := range msgIDs {
		result := s.processMessage(ctx, msgID, seen)
		if result != nil {
			processed = append(processed, *result)
		}
	}

	return &model.IntakeResponse{
		Status:         model.StatusSuccess,
		Message:        "Processing complete",
		FilesProcessed: processed,
	}, nil
}

// processMessage handles one email end to end. Returns nil for duplicate
// filenames within the batch (skipped silently, as the second export would
// just archive the first).
func (s *IntakeService) processMessage(ctx context.Context, msgID string, seen map[string]bool) *model.ProcessedFile {
	msg, err := s.mailbox.GetMessage(ctx, msgID)
	if err != nil {
		return &model.ProcessedFile{MessageID: msgID, Status: "error", Error: err.Error()}
	}

	if seen[msg.Filename] {
		log.Printf("[Intake] skipping duplicate filename %q in message %s", msg.Filename, msgID)
		return nil
	}
	seen[msg.Filename] = true

	pdfURL, txtURL, err := extractFileLinks(msg.HTMLBody)
	if err != nil {
		return &model.ProcessedFile{MessageID: msgID, Filename: msg.Filename, Status: "error", Error: err.Error()}
	}

	pdfContent, err := s.download(ctx, pdfURL)
	if err != nil {
		return &model.ProcessedFile{MessageID: msgID, Filename: msg.Filename, Status: "error", Error: fmt.Sprintf("PDF download failed: %v", err)}
	}

	pdfFileID, err := s.library.SaveNotebookFile(ctx, msg.Filename+".pdf", "application/pdf", pdfContent)
	if err != nil {
		return &model.ProcessedFile{MessageID: msgID, Filename: msg.Filename, Status: "error", Error: fmt.Sprintf("PDF upload failed: %v", err)}
	}

	result := &model.ProcessedFile{
		MessageID: msgID,
		Filename:  msg.Filename,
		PDFFileID: pdfFileID,
		Status:    "success",
	}

	if s.ocr != nil && s.ocr.IsConfigured() {
		job, err := s.ocr.Dispatch(ctx, msg.Filename, pdfFileID, pdfContent)
		if err != nil {
			// The PDF is safely in the folder; OCR can be re-dispatched later.
			log.Printf("[Intake] OCR dispatch failed for %q: %v", msg.Filename, err)
		} else {
			result.OCRJobID = job.ID
		}
	}

	if txtURL != "" {
		txtContent, err := s.download(ctx, txtURL)
		if err != nil {
			result.Status = "error"
			result.Error = fmt.Sprintf("TXT download failed: %v", err)
			return result
		}
		txtFileID, err := s.library.SaveNotebookFile(ctx, msg.Filename+".txt", "text/plain", txtContent)
		if err != nil {
			result.Status = "error"
			result.Error = fmt.Sprintf("TXT upload failed: %v", err)
			return result
		}
		result.TxtFileID = txtFileID
	}

	// Handoff complete: only now take the message out of the unread set.
	if err := s.mailbox.MarkProcessed(ctx, msgID); err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("failed to mark message processed: %v", err)
	}

	return result
}

func (s *IntakeService) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize))
}
