// Package audit records access decisions for later inspection.
//
// Every gate decision lands in a fixed-size in-memory ring (newest first on
// read-out) and, when configured, is appended to a log file. File write
// failures are reported to the caller but must never abort the request being
// audited - handlers log the error and move on.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ringSize is how many recent entries the in-memory ring retains.
const ringSize = 128

// Entry is one recorded access decision.
type Entry struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	IP     string    `json:"ip"`
	Status string    `json:"status"`
	Path   string    `json:"path"`
}

// Log is a bounded in-memory audit trail with an optional file sink.
//
// Thread Safety:
// Safe for concurrent use. The ring mutex is never held across file I/O.
type Log struct {
	mu      sync.Mutex
	entries [ringSize]Entry
	next    int
	count   int

	fileMu sync.Mutex
	file   *os.File

	now func() time.Time
}

// New creates an audit log. logPath may be empty, in which case entries are
// kept only in memory.
func New(logPath string) (*Log, error) {
	l := &Log{now: time.Now}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log %s: %w", logPath, err)
		}
		l.file = f
	}

	return l, nil
}

// Record appends one decision to the ring and the file sink.
//
// The returned error only ever concerns the file sink; the in-memory entry is
// recorded regardless.
func (l *Log) Record(ip, status, path string) error {
	entry := Entry{
		ID:     uuid.NewString(),
		Time:   l.now(),
		IP:     ip,
		Status: status,
		Path:   path,
	}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % ringSize
	if l.count < ringSize {
		l.count++
	}
	l.mu.Unlock()

	line := fmt.Sprintf("[%s] IP: %s | Status: %s | Path: %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), ip, status, path)

	l.fileMu.Lock()
	f := l.file
	var err error
	if f != nil {
		_, err = f.WriteString(line)
	}
	l.fileMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + ringSize*2) % ringSize
		out = append(out, l.entries[idx])
	}
	return out
}

// Close releases the file sink, if any.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}
