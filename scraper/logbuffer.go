package scraper

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viniciusgf/go-scrape-inci/models"
)

// maxLogEntries caps the in-memory run log; the oldest entries evict first.
const maxLogEntries = 500

// LogBuffer is the bounded, append-only run log.
type LogBuffer struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

// NewLogBuffer returns an empty buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Append records one entry and returns it.
func (b *LogBuffer) Append(logType models.LogType, message string) models.LogEntry {
	entry := models.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      logType,
		Message:   message,
	}

	b.mu.Lock()
	b.entries = append(b.entries, entry)
	if overflow := len(b.entries) - maxLogEntries; overflow > 0 {
		b.entries = append(b.entries[:0:0], b.entries[overflow:]...)
	}
	b.mu.Unlock()

	return entry
}

// Snapshot returns a copy of the buffered entries, oldest first.
func (b *LogBuffer) Snapshot() []models.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len reports the current number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Reset discards all entries.
func (b *LogBuffer) Reset() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}
