package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SentLog persists the run-to-message record backing the duplicate-send
// guard, so a restarted session still refuses to resend a run.
type SentLog struct {
	path string
}

func NewSentLog(path string) *SentLog {
	return &SentLog{path: path}
}

type sentLogFile struct {
	Sent      map[string]string `json:"sent"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Load returns the recorded run-to-message map. A missing file is an
// empty log.
func (l *SentLog) Load() (map[string]string, error) {
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sent log: %w", err)
	}
	var f sentLogFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sent log %s: %w", l.path, err)
	}
	if f.Sent == nil {
		f.Sent = map[string]string{}
	}
	return f.Sent, nil
}

// Save replaces the log with the given map.
func (l *SentLog) Save(sent map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create sent log dir: %w", err)
	}
	b, err := json.MarshalIndent(sentLogFile{Sent: sent, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.path, b, 0o644); err != nil {
		return fmt.Errorf("write sent log: %w", err)
	}
	return nil
}
