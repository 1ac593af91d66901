package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/scribesync/api/internal/client"
)

// memFileStore is an in-memory client.FileStore for tests.
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

// countByName counts files with the given name anywhere in the store.
func (m *memFileStore) countByName(name string) int {
	n := 0
	for _, f := range m.files {
		if f.name == name {
			n++
		}
	}
	return n
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

// fakeObjectStorage is an in-memory client.ObjectStorage.
type fakeObjectStorage struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjectStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

// fakeRecognizer is an in-memory client.TextRecognizer.
type fakeRecognizer struct {
	startErr   error
	getErr     error
	result     *client.RecognitionResult
	startCalls int
	getCalls   int
}

func (f *fakeRecognizer) StartRecognition(_ context.Context, _ *client.RecognitionRequest) (*client.RecognitionTask, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &client.RecognitionTask{TaskID: fmt.Sprintf("task-%d", f.startCalls), State: client.RecognitionStatePending}, nil
}

func (f *fakeRecognizer) GetRecognition(_ context.Context, taskID string) (*client.RecognitionResult, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	result := *f.result
	result.TaskID = taskID
	return &result, nil
}

// fakeDistiller is an in-memory client.Distiller.
type fakeDistiller struct {
	reply    string
	err      error
	calls    int
	lastUser string
}

func (f *fakeDistiller) ChatCompletion(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}
