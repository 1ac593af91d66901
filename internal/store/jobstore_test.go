package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/model"
)

// memFileStore is an in-memory client.FileStore for tests.
type memFileStore struct {
	seq     int
	folders map[string]string // "<parent>/<name>" -> folder id
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

func newRecord(id, source string, status model.JobStatus) model.JobRecord {
	now := time.Now().UTC()
	return model.JobRecord{
		ID:            id,
		Type:          model.JobTypeOCR,
		Filename:      "notebook",
		SourceFileRef: source,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestGetJobsInitializesEmptyList(t *testing.T) {
	s := New(newMemFileStore(), "Kindle Notebooks", "ocr_jobs.json")

	jobs, err := s.GetJobs(context.Background())
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected empty list, got %d records", len(jobs))
	}
}

func TestAppendAndGet(t *testing.T) {
	s := New(newMemFileStore(), "Kindle Notebooks", "ocr_jobs.json")
	ctx := context.Background()

	rec := newRecord("job-1", "src-1", model.JobStatusProcessing)
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceFileRef != "src-1" || got.Status != model.JobStatusProcessing {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestAppendRejectsDuplicateLiveSource(t *testing.T) {
	s := New(newMemFileStore(), "Kindle Notebooks", "ocr_jobs.json")
	ctx := context.Background()

	if err := s.Append(ctx, newRecord("job-1", "src-1", model.JobStatusProcessing)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, newRecord("job-2", "src-1", model.JobStatusProcessing)); err == nil {
		t.Error("expected second dispatch for the same source to fail")
	}

	// A terminal record for the same source does not block a re-dispatch.
	if err := s.Append(ctx, newRecord("job-3", "src-2", model.JobStatusError)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, newRecord("job-4", "src-2", model.JobStatusProcessing)); err != nil {
		t.Errorf("re-dispatch after terminal record should succeed: %v", err)
	}
}

func TestUpdateEnforcesMonotonicTransitions(t *testing.T) {
	s := New(newMemFileStore(), "Kindle Notebooks", "ocr_jobs.json")
	ctx := context.Background()

	rec := newRecord("job-1", "src-1", model.JobStatusProcessing)
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec.Status = model.JobStatusComplete
	rec.MarkdownFileID = "md-1"
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("Update to complete: %v", err)
	}

	rec.Status = model.JobStatusProcessing
	if err := s.Update(ctx, rec); !errors.Is(err, ErrStatusRegression) {
		t.Errorf("complete to processing: expected ErrStatusRegression, got %v", err)
	}

	rec.Status = model.JobStatusError
	if err := s.Update(ctx, rec); !errors.Is(err, ErrStatusRegression) {
		t.Errorf("complete to error: expected ErrStatusRegression, got %v", err)
	}

	// Re-writing the same terminal status is allowed.
	rec.Status = model.JobStatusComplete
	if err := s.Update(ctx, rec); err != nil {
		t.Errorf("complete to complete: %v", err)
	}
}

func TestGetJobsCoercesUnknownStatus(t *testing.T) {
	files := newMemFileStore()
	s := New(files, "Kindle Notebooks", "ocr_jobs.json")
	ctx := context.Background()

	folderID, _ := files.EnsureFolder(ctx, "Kindle Notebooks", "")
	raw := `[{"id":"job-1","type":"ocr","source_file_ref":"src-1","status":"weird"}]`
	if _, err := files.Upload(ctx, folderID, "ocr_jobs.json", "application/json", []byte(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	jobs, err := s.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != model.JobStatusError {
		t.Errorf("expected unknown status coerced to error, got %+v", jobs)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	s := New(newMemFileStore(), "Kindle Notebooks", "ocr_jobs.json")

	err := s.Update(context.Background(), newRecord("ghost", "src-1", model.JobStatusComplete))
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
