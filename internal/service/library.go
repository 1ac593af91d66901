package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scribesync/api/internal/client"
)

// Library wraps the file store with the notebook folder conventions: a main
// folder holding current notebooks, an "Old" subfolder for archived
// revisions, and a top-level temp folder for distillation intermediates.
type Library struct {
	files      client.FileStore
	mainFolder string
	oldFolder  string
	tempFolder string
}

func NewLibrary(files client.FileStore, mainFolder, oldFolder, tempFolder string) *Library {
	return &Library{
		files:      files,
		mainFolder: mainFolder,
		oldFolder:  oldFolder,
		tempFolder: tempFolder,
	}
}

func (l *Library) Files() client.FileStore { return l.files }

// MainFolderID resolves (creating if needed) the notebook folder.
func (l *Library) MainFolderID(ctx context.Context) (string, error) {
	return l.files.EnsureFolder(ctx, l.mainFolder, "")
}

// OldFolderID resolves the archive subfolder under the main folder.
func (l *Library) OldFolderID(ctx context.Context) (string, error) {
	mainID, err := l.MainFolderID(ctx)
	if err != nil {
		return "", err
	}
	return l.files.EnsureFolder(ctx, l.oldFolder, mainID)
}

// TempFolderID resolves the temp-processing folder.
func (l *Library) TempFolderID(ctx context.Context) (string, error) {
	return l.files.EnsureFolder(ctx, l.tempFolder, "")
}

// SaveNotebookFile uploads a file into the main folder. An existing file with
// the same name is first moved into Old under a timestamped name, so the main
// folder always holds exactly one current version.
func (l *Library) SaveNotebookFile(ctx context.Context, name, mimeType string, content []byte) (string, error) {
	mainID, err := l.MainFolderID(ctx)
	if err != nil {
		return "", err
	}

	existing, err := l.files.FindByName(ctx, mainID, name)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		oldID, err := l.OldFolderID(ctx)
		if err != nil {
			return "", err
		}
		suffix := timestampSuffix()
		for _, f := range existing {
			archived := archivedName(f.Name, suffix)
			log.Printf("[Library] archiving %s as %s", f.Name, archived)
			if err := l.files.Move(ctx, f.ID, mainID, oldID, archived); err != nil {
				return "", err
			}
		}
	}

	return l.files.Upload(ctx, mainID, name, mimeType, content)
}

// ArchiveOriginal moves a processed file out of the main folder into Old with
// a timestamped name.
func (l *Library) ArchiveOriginal(ctx context.Context, fileID, filename string) error {
	mainID, err := l.MainFolderID(ctx)
	if err != nil {
		return err
	}
	oldID, err := l.OldFolderID(ctx)
	if err != nil {
		return err
	}
	return l.files.Move(ctx, fileID, mainID, oldID, archivedName(filename, timestampSuffix()))
}

// ListNotebookTexts returns the plain-text files sitting in the main folder.
func (l *Library) ListNotebookTexts(ctx context.Context) ([]client.FileInfo, error) {
	mainID, err := l.MainFolderID(ctx)
	if err != nil {
		return nil, err
	}
	return l.files.List(ctx, mainID, "text/plain")
}

// StoreTemp writes content into the temp folder under a temp_ prefixed name.
func (l *Library) StoreTemp(ctx context.Context, name string, content []byte) (string, error) {
	tempID, err := l.TempFolderID(ctx)
	if err != nil {
		return "", err
	}
	return l.files.Upload(ctx, tempID, "temp_"+name, "text/plain", content)
}

// FindTemp looks up a temp file by its prefixed name.
func (l *Library) FindTemp(ctx context.Context, name string) (string, error) {
	tempFolderID, err := l.TempFolderID(ctx)
	if err != nil {
		return "", err
	}
	files, err := l.files.FindByName(ctx, tempFolderID, "temp_"+name)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[0].ID, nil
}

// archivedName inserts the timestamp suffix before the extension:
// "notes.txt" becomes "notes_20250101_120000.txt".
func archivedName(filename, suffix string) string {
	base := filename
	ext := ""
	if i := strings.LastIndex(filename, "."); i > 0 {
		base, ext = filename[:i], filename[i:]
	}
	return fmt.Sprintf("%s_%s%s", base, suffix, ext)
}

func timestampSuffix() string {
	now := time.Now()
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		now = now.In(loc)
	}
	return now.Format("20060102_150405")
}
