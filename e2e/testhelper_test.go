package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scribesync/api/internal/auth"
	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/handler"
	"github.com/scribesync/api/internal/middleware"
	"github.com/scribesync/api/internal/service"
	"github.com/scribesync/api/internal/store"
)

const (
	testSchedulerToken = "test-scheduler-token"
	testJWTSecret      = "test-secret-for-e2e"
)

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	files   *memFileStore
	mailbox *fakeMailbox
}

// setupApp creates a Fiber app wired like main.go but with in-memory fakes
// for the mailbox and file store and no OCR/LLM backends configured.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis on localhost; rate limiting silently disables itself when absent
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	files := newMemFileStore()
	mailbox := &fakeMailbox{messages: make(map[string]*client.NotebookMessage)}

	library := service.NewLibrary(files, "Kindle Notebooks", "Old", "_temp_processing")
	jobStore := store.New(files, "Kindle Notebooks", "ocr_jobs.json")

	// No object storage or recognizer → OCR dispatch disabled, poll still works
	ocrService := service.NewOCRService(jobStore, library, nil, nil, "ocr", nil)
	intakeService := service.NewIntakeService(mailbox, library, ocrService)
	distillService := service.NewDistillService(library, nil, "")

	intakeHandler := handler.NewIntakeHandler(intakeService)
	ocrHandler := handler.NewOCRHandler(ocrService, validate)
	distillHandler := handler.NewDistillHandler(distillService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testSchedulerToken, testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage":   false,
				"ocr":       false,
				"llm":       false,
				"scheduler": false,
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	intake := api.Group("/intake", rateLimiter.IntakeLimit(10000))
	intake.Get("/run", intakeHandler.Run)

	ocr := api.Group("/ocr", rateLimiter.PollLimit(10000))
	ocr.Get("/poll", ocrHandler.Poll)

	api.Get("/jobs", rateLimiter.PollLimit(10000), ocrHandler.Jobs)

	distill := api.Group("/distill", rateLimiter.DistillLimit(10000))
	distill.Get("/queue", distillHandler.Queue)
	distill.Get("/process", distillHandler.Process)
	distill.Get("/save", distillHandler.Save)

	return &testApp{app: app, files: files, mailbox: mailbox}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.Test(req, -1)
}

// doAuthRequest performs a request with the scheduler token.
func doAuthRequest(t *testing.T, app *fiber.App, method, path string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, map[string]string{
		"Authorization": "Bearer " + testSchedulerToken,
	})
}

// doJWTRequest performs a request with an HMAC-signed operator token.
func doJWTRequest(t *testing.T, app *fiber.App, method, path string) (*http.Response, error) {
	t.Helper()
	token, err := auth.GenerateToken("ops", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return doRequest(app, method, path, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// memFileStore is an in-memory client.FileStore for handler tests.
type memFileStore struct {
	seq     int
	folders map[string]string
	files   map[string]*memFile
}

type memFile struct {
	id, name, parent, mime string
	content                []byte
}

func newMemFileStore() *memFileStore {
	return &memFileStore{
		folders: make(map[string]string),
		files:   make(map[string]*memFile),
	}
}

func (m *memFileStore) EnsureFolder(_ context.Context, name, parentID string) (string, error) {
	key := parentID + "/" + name
	if id, ok := m.folders[key]; ok {
		return id, nil
	}
	m.seq++
	id := fmt.Sprintf("folder-%d", m.seq)
	m.folders[key] = id
	return id, nil
}

func (m *memFileStore) Upload(_ context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	m.seq++
	id := fmt.Sprintf("file-%d", m.seq)
	m.files[id] = &memFile{id: id, name: name, parent: folderID, mime: mimeType, content: append([]byte(nil), content...)}
	return id, nil
}

func (m *memFileStore) Update(_ context.Context, fileID, mimeType string, content []byte) error {
	f, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	f.mime = mimeType
	f.content = append([]byte(nil), content...)
	return nil
}

func (m *memFileStore) Download(_ context.Context, fileID string) ([]byte, error) {
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return append([]byte(nil), f.content...), nil
}

func (m *memFileStore) List(_ context.Context, folderID, mimeType string) ([]client.FileInfo, error) {
	var out []client.FileInfo
	for _, f := range m.files {
		if f.parent == folderID && f.mime == mimeType {
			out = append(out, client.FileInfo{ID: f.id, Name: f.name})
		}
	}
	return out, nil
}

func (m *memFileStore) FindByName(_ context.Context, folderID, name string) ([]client.FileInfo, error) {
	var out []client.FileInfo
	for _, f := range m.files {
		if f.parent == folderID && f.name == name {
			out = append(out, client.FileInfo{ID: f.id, Name: f.name})
		}
	}
	return out, nil
}

func (m *memFileStore) Move(_ context.Context, fileID, _, toFolderID, newName string) error {
	f, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	f.parent = toFolderID
	f.name = newName
	return nil
}

func (m *memFileStore) Delete(_ context.Context, fileID string) error {
	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	delete(m.files, fileID)
	return nil
}

func (m *memFileStore) GetName(_ context.Context, fileID string) (string, error) {
	f, ok := m.files[fileID]
	if !ok {
		return "", fmt.Errorf("file %s not found", fileID)
	}
	return f.name, nil
}

// fakeMailbox is an in-memory client.Mailbox.
type fakeMailbox struct {
	unread    []string
	messages  map[string]*client.NotebookMessage
	processed []string
}

func (f *fakeMailbox) ListUnread(context.Context) ([]string, error) {
	return f.unread, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, msgID string) (*client.NotebookMessage, error) {
	msg, ok := f.messages[msgID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", msgID)
	}
	return msg, nil
}

func (f *fakeMailbox) MarkProcessed(_ context.Context, msgID string) error {
	f.processed = append(f.processed, msgID)
	return nil
}
