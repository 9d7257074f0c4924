package safety

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNilWriter is returned by AuditLogger.Log on a logger without a writer.
var ErrNilWriter = errors.New("audit logger: writer is nil")

// AuditEntry records one tool invocation. Writes record the tunable they
// touched in Params.
type AuditEntry struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Result    string         `json:"result"`
	Duration  time.Duration  `json:"duration_ns"`
}

// AuditLogger appends AuditEntry records as NDJSON. Safe for concurrent use.
type AuditLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditLogger returns a logger writing to w, or nil when w is nil.
func NewAuditLogger(w io.Writer) *AuditLogger {
	if w == nil {
		return nil
	}
	return &AuditLogger{w: w}
}

// OpenAuditFile opens path for appending, creating it and its directory if
// needed. When maxSizeMB is positive and the existing file has reached it,
// the file is moved to path+".1" first, replacing any earlier rotation. The
// caller closes the returned file.
func OpenAuditFile(path string, maxSizeMB int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	if maxSizeMB > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() >= int64(maxSizeMB)<<20 {
			if err := os.Rename(path, path+".1"); err != nil {
				return nil, fmt.Errorf("rotate audit log: %w", err)
			}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, nil
}

// Log writes entry as one JSON line. A missing RequestID is filled in.
func (l *AuditLogger) Log(entry AuditEntry) error {
	if l == nil || l.w == nil {
		return ErrNilWriter
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}
