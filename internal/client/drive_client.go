package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// FileStore defines the interface for the cloud file tree holding notebooks,
// the job-list file, and the distillation temp space.
type FileStore interface {
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error)
	Update(ctx context.Context, fileID, mimeType string, content []byte) error
	Download(ctx context.Context, fileID string) ([]byte, error)
	List(ctx context.Context, folderID, mimeType string) ([]FileInfo, error)
	FindByName(ctx context.Context, folderID, name string) ([]FileInfo, error)
	Move(ctx context.Context, fileID, fromFolderID, toFolderID, newName string) error
	Delete(ctx context.Context, fileID string) error
	GetName(ctx context.Context, fileID string) (string, error)
}

// FileInfo is the subset of file metadata the pipeline cares about.
type FileInfo struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

// DriveClient implements FileStore for Google Drive
type DriveClient struct {
	svc *drive.Service
}

// NewDriveClient creates a new Drive file store client
func NewDriveClient(ctx context.Context, opts ...option.ClientOption) (*DriveClient, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveClient{svc: svc}, nil
}

// EnsureFolder returns the id of the named folder, creating it when missing.
// parentID may be empty for a top-level folder.
func (c *DriveClient) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("mimeType='%s' and trashed=false and name='%s'", folderMimeType, escapeQueryValue(name))
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	res, err := c.svc.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for folder %q: %w", name, err)
	}
	if len(res.Files) > 0 {
		return res.Files[0].Id, nil
	}

	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	folder, err := c.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return folder.Id, nil
}

// Upload creates a new file in the given folder and returns its id.
func (c *DriveClient) Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	meta := &drive.File{Name: name, Parents: []string{folderID}}
	file, err := c.svc.Files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", name, err)
	}
	return file.Id, nil
}

// Update replaces the content of an existing file in place.
func (c *DriveClient) Update(ctx context.Context, fileID, mimeType string, content []byte) error {
	_, err := c.svc.Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update file %s: %w", fileID, err)
	}
	return nil
}

// Download reads the full content of a file.
func (c *DriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	res, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}

// List returns the files of the given MIME type directly inside a folder.
func (c *DriveClient) List(ctx context.Context, folderID, mimeType string) ([]FileInfo, error) {
	query := fmt.Sprintf("mimeType='%s' and '%s' in parents and trashed=false", mimeType, folderID)
	res, err := c.svc.Files.List().Q(query).Spaces("drive").Fields("files(id, name, modifiedTime)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return toFileInfos(res.Files), nil
}

// FindByName returns files with an exact name inside a folder.
func (c *DriveClient) FindByName(ctx context.Context, folderID, name string) ([]FileInfo, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escapeQueryValue(name), folderID)
	res, err := c.svc.Files.List().Q(query).Spaces("drive").Fields("files(id, name, modifiedTime)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find %q in folder %s: %w", name, folderID, err)
	}
	return toFileInfos(res.Files), nil
}

// Move reparents a file and optionally renames it.
func (c *DriveClient) Move(ctx context.Context, fileID, fromFolderID, toFolderID, newName string) error {
	meta := &drive.File{}
	if newName != "" {
		meta.Name = newName
	}
	_, err := c.svc.Files.Update(fileID, meta).
		AddParents(toFolderID).
		RemoveParents(fromFolderID).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to move file %s: %w", fileID, err)
	}
	return nil
}

// Delete removes a file permanently.
func (c *DriveClient) Delete(ctx context.Context, fileID string) error {
	if err := c.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

// GetName resolves a file id to its current name.
func (c *DriveClient) GetName(ctx context.Context, fileID string) (string, error) {
	file, err := c.svc.Files.Get(fileID).Fields("name").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return file.Name, nil
}

func toFileInfos(files []*drive.File) []FileInfo {
	infos := make([]FileInfo, 0, len(files))
	for _, f := range files {
		info := FileInfo{ID: f.Id, Name: f.Name}
		if f.ModifiedTime != "" {
			if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
				info.ModifiedTime = t
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// escapeQueryValue escapes single quotes for Drive query strings.
func escapeQueryValue(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
