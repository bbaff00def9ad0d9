package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists ledger state as a small JSON document. Suitable
// for single-user CLI sessions; concurrent processes should use the
// SQLite store instead.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileState struct {
	FreeRemaining   int       `json:"free_remaining"`
	APIKeyRemaining int       `json:"apikey_remaining"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (f *FileStore) Load(_ context.Context) (State, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read quota state: %w", err)
	}
	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return State{}, false, fmt.Errorf("parse quota state %s: %w", f.path, err)
	}
	return State{FreeRemaining: fs.FreeRemaining, APIKeyRemaining: fs.APIKeyRemaining}, true, nil
}

func (f *FileStore) Save(_ context.Context, s State) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create quota state dir: %w", err)
		}
	}
	fs := fileState{
		FreeRemaining:   s.FreeRemaining,
		APIKeyRemaining: s.APIKeyRemaining,
		UpdatedAt:       time.Now().UTC(),
	}
	data, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quota state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write quota state: %w", err)
	}
	return nil
}
