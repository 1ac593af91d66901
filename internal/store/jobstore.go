// Package store persists the OCR job-tracking records as a single JSON file
// in the notebook folder. Writes are whole-file, last-write-wins; serialized
// external triggering is what keeps concurrent writers out.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/model"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrStatusRegression guards the monotonic transition rule: a terminal
	// record never goes back to processing or flips to the other terminal.
	ErrStatusRegression = errors.New("job status transition not allowed")
)

const jobsFileMimeType = "application/json"

// JobStore reads and writes the job-list file.
type JobStore struct {
	files      client.FileStore
	mainFolder string
	filename   string
}

func New(files client.FileStore, mainFolder, filename string) *JobStore {
	return &JobStore{
		files:      files,
		mainFolder: mainFolder,
		filename:   filename,
	}
}

// GetJobs loads all job records. A missing backing file initializes an empty
// list rather than failing.
func (s *JobStore) GetJobs(ctx context.Context) ([]model.JobRecord, error) {
	fileID, err := s.findFile(ctx)
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return []model.JobRecord{}, nil
	}

	data, err := s.files.Download(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read job list: %w", err)
	}

	var jobs []model.JobRecord
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse job list: %w", err)
	}
	for i := range jobs {
		if !jobs[i].Status.Valid() {
			log.Printf("[JobStore] job %s has unknown status %q, treating as error", jobs[i].ID, jobs[i].Status)
			jobs[i].Status = model.JobStatusError
		}
	}
	return jobs, nil
}

// SaveJobs overwrites the backing file with the given list.
func (s *JobStore) SaveJobs(ctx context.Context, jobs []model.JobRecord) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job list: %w", err)
	}

	fileID, err := s.findFile(ctx)
	if err != nil {
		return err
	}
	if fileID == "" {
		folderID, err := s.files.EnsureFolder(ctx, s.mainFolder, "")
		if err != nil {
			return fmt.Errorf("failed to resolve notebook folder: %w", err)
		}
		if _, err := s.files.Upload(ctx, folderID, s.filename, jobsFileMimeType, data); err != nil {
			return fmt.Errorf("failed to create job list: %w", err)
		}
		return nil
	}
	if err := s.files.Update(ctx, fileID, jobsFileMimeType, data); err != nil {
		return fmt.Errorf("failed to write job list: %w", err)
	}
	return nil
}

// Get returns a single record by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	jobs, err := s.GetJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == jobID {
			return &jobs[i], nil
		}
	}
	return nil, ErrJobNotFound
}

// Append adds a new record. At most one record may exist per source file;
// a live record for the same source is a duplicate dispatch.
func (s *JobStore) Append(ctx context.Context, rec model.JobRecord) error {
	jobs, err := s.GetJobs(ctx)
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].SourceFileRef == rec.SourceFileRef && !jobs[i].Status.Terminal() {
			return fmt.Errorf("job %s already tracks source %s", jobs[i].ID, rec.SourceFileRef)
		}
	}
	return s.SaveJobs(ctx, append(jobs, rec))
}

// Update replaces the record with the same id, enforcing monotonic status
// transitions. Updating a terminal record to any different status fails.
func (s *JobStore) Update(ctx context.Context, rec model.JobRecord) error {
	jobs, err := s.GetJobs(ctx)
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID != rec.ID {
			continue
		}
		if jobs[i].Status.Terminal() && jobs[i].Status != rec.Status {
			return fmt.Errorf("%w: %s → %s", ErrStatusRegression, jobs[i].Status, rec.Status)
		}
		rec.UpdatedAt = time.Now().UTC()
		jobs[i] = rec
		return s.SaveJobs(ctx, jobs)
	}
	return ErrJobNotFound
}

func (s *JobStore) findFile(ctx context.Context) (string, error) {
	folderID, err := s.files.EnsureFolder(ctx, s.mainFolder, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve notebook folder: %w", err)
	}
	files, err := s.files.FindByName(ctx, folderID, s.filename)
	if err != nil {
		return "", fmt.Errorf("failed to locate job list: %w", err)
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].ID, nil
}
