package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the whole graph as one JSON document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Read(_ context.Context) (Graph, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return Graph{}, nil
	}
	if err != nil {
		return Graph{}, fmt.Errorf("read canvas file: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("parse canvas file %s: %w", f.path, err)
	}
	return g, nil
}

func (f *FileStore) Write(_ context.Context, g Graph) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create canvas dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode canvas: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write canvas file: %w", err)
	}
	return nil
}
