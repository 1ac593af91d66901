package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/scribesync/api/internal/config"
)

// Remote recognition task states as reported by the OCR service.
const (
	RecognitionStatePending   = "pending"
	RecognitionStateRunning   = "running"
	RecognitionStateSucceeded = "succeeded"
	RecognitionStateFailed    = "failed"
)

// TextRecognizer defines the interface for the asynchronous OCR service
type TextRecognizer interface {
	StartRecognition(ctx context.Context, req *RecognitionRequest) (*RecognitionTask, error)
	GetRecognition(ctx context.Context, taskID string) (*RecognitionResult, error)
}

// RecognitionRequest asks the OCR service to fetch and recognize a document.
type RecognitionRequest struct {
	DocumentURL string `json:"document_url"`
	Language    string `json:"language,omitempty"`
}

// RecognitionTask is the handle returned when a recognition starts.
type RecognitionTask struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

// RecognitionResult is the state of a recognition task, with page text once
// the task has succeeded.
type RecognitionResult struct {
	TaskID string           `json:"task_id"`
	State  string           `json:"state"`
	Pages  []RecognizedPage `json:"pages,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// RecognizedPage is the recognized text of a single document page.
type RecognizedPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Text concatenates all page texts in order.
func (r *RecognitionResult) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Done reports whether the task reached a terminal state.
func (r *RecognitionResult) Done() bool {
	return r.State == RecognitionStateSucceeded || r.State == RecognitionStateFailed
}

// OCRClient implements TextRecognizer over the service's JSON HTTP API
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOCRClient creates a new OCR service client
func NewOCRClient(cfg *config.OCRConfig) *OCRClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OCRClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// StartRecognition submits a document for asynchronous recognition.
func (c *OCRClient) StartRecognition(ctx context.Context, req *RecognitionRequest) (*RecognitionTask, error) {
	var task RecognitionTask
	if err := c.post(ctx, "/recognitions", req, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, fmt.Errorf("OCR service returned no task id")
	}
	return &task, nil
}

// GetRecognition fetches the current state of a recognition task.
func (c *OCRClient) GetRecognition(ctx context.Context, taskID string) (*RecognitionResult, error) {
	var result RecognitionResult
	if err := c.get(ctx, fmt.Sprintf("/recognitions/%s", taskID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *OCRClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *OCRClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *OCRClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *OCRClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[OCR API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[OCR API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("OCR service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
