// Package logbook is the append-only audit trail for review sessions.
// Every lifecycle transition, checkpoint, recoverable error, and reviewer
// decision lands here as one timestamped line, so the file reads as the
// history of a review. Entries carry the session ID so several sessions
// can share one file.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook persists review-session activity to a simple text file.
type Logbook struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SetClock overrides the timestamp source. Tests use this to make
// entries deterministic.
func (l *Logbook) SetClock(now func() time.Time) {
	if l == nil || now == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Append writes a single entry. Audit logging must never take a review
// down, so write failures are swallowed.
func (l *Logbook) Append(level Level, sessionID, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s [%s] %s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		sessionID,
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries plus the total
// number of lines in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// SessionTail returns up to maxLines of the most recent entries belonging
// to one session.
func (l *Logbook) SessionTail(sessionID string, maxLines int) []string {
	all, _ := l.Tail(1 << 16)
	marker := "[" + sessionID + "]"
	var lines []string
	for _, line := range all {
		if strings.Contains(line, marker) {
			lines = append(lines, line)
		}
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

// Info appends an informational entry for a session.
func (l *Logbook) Info(sessionID, format string, args ...any) {
	l.Append(LevelInfo, sessionID, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry for a session.
func (l *Logbook) Warn(sessionID, format string, args ...any) {
	l.Append(LevelWarn, sessionID, fmt.Sprintf(format, args...))
}

// Error appends an error entry for a session.
func (l *Logbook) Error(sessionID, format string, args ...any) {
	l.Append(LevelError, sessionID, fmt.Sprintf(format, args...))
}
