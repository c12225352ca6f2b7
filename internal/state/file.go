package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
)

// Ensure FileStore implements model.StateStore.
var _ model.StateStore = (*FileStore)(nil)

// document is the on-disk shape. Files holding only "message" are accepted.
type document struct {
	Message   string `json:"message"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// FileStore keeps the notification state in a small JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the state file. A missing file yields empty state and no error;
// an unreadable or corrupt file yields empty state and an error.
func (s *FileStore) Load(_ context.Context) (model.NotificationState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NotificationState{}, nil
	}
	if err != nil {
		return model.NotificationState{}, fmt.Errorf("reading state file %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return model.NotificationState{}, nil
	}
	return decode(data)
}

// Save writes the state atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, st model.NotificationState) error {
	data, err := encode(st)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".lastmessage-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file %s: %w", s.path, err)
	}
	return nil
}

func encode(st model.NotificationState) ([]byte, error) {
	doc := document{Message: st.LastMessage}
	if !st.UpdatedAt.IsZero() {
		doc.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (model.NotificationState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.NotificationState{}, fmt.Errorf("decoding state: %w", err)
	}
	st := model.NotificationState{LastMessage: doc.Message}
	if doc.UpdatedAt != "" {
		// A bad timestamp doesn't invalidate the message.
		if t, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
			st.UpdatedAt = t
		}
	}
	return st, nil
}
