package logging

import (
	"strings"
	"sync"
)

// DefaultCaptureLines is the number of lines kept by Capture.
const DefaultCaptureLines = 50

// CaptureWriter is a thread-safe writer that keeps the most recent log lines.
type CaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// Capture receives a copy of every server log line at INFO or above.
var Capture = NewCaptureWriter(DefaultCaptureLines)

// NewCaptureWriter returns a writer keeping up to size lines.
func NewCaptureWriter(size int) *CaptureWriter {
	if size < 1 {
		size = 1
	}
	return &CaptureWriter{lines: make([]string, size)}
}

// Write implements io.Writer. slog text handlers emit one record per call.
func (w *CaptureWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines[w.next] = line
	w.next = (w.next + 1) % len(w.lines)
	if w.next == 0 {
		w.full = true
	}
	return len(p), nil
}

// LastLine returns the most recent log line, or "" if nothing was written.
func (w *CaptureWriter) LastLine() string {
	lines := w.Lines(1)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// Lines returns up to n of the most recent lines, oldest first.
func (w *CaptureWriter) Lines(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	count := w.next
	if w.full {
		count = len(w.lines)
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]string, 0, n)
	start := w.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(w.lines)) % len(w.lines)
		out = append(out, w.lines[idx])
	}
	return out
}
