package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink persists finalized audio containers. Returns the stored name so the
// transcript log can reference it.
type Sink interface {
	Store(sessionID string, wav []byte) (string, error)
}

// TranscriptEntry is one completed flush's transcript
type TranscriptEntry struct {
	SessionID  string    `json:"sessionId"`
	Transcript string    `json:"transcript"`
	AudioFile  string    `json:"audioFile,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TranscriptLog durably records transcripts as they are produced
type TranscriptLog interface {
	Append(entry TranscriptEntry) error
}

// FileSink writes containers as files named <unix-timestamp>_<short-id>.wav
type FileSink struct {
	dir string
}

// NewFileSink creates the target directory if needed
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create container directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Store implements Sink
func (f *FileSink) Store(sessionID string, wav []byte) (string, error) {
	name := fmt.Sprintf("%d_%s.wav", time.Now().Unix(), shortID(sessionID))
	path := filepath.Join(f.dir, name)

	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("failed to write container %s: %w", path, err)
	}

	return name, nil
}

// FileTranscriptLog appends JSON lines to a single file
type FileTranscriptLog struct {
	mu   sync.Mutex
	path string
}

// NewFileTranscriptLog creates a JSONL transcript log at the given path
func NewFileTranscriptLog(path string) *FileTranscriptLog {
	return &FileTranscriptLog{path: path}
}

// Append implements TranscriptLog
func (f *FileTranscriptLog) Append(entry TranscriptEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode transcript entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append transcript entry: %w", err)
	}

	return nil
}

// shortID truncates a session identifier for use in file names
func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}
