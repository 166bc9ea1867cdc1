// Package transcript defines the conversation transcript seam between an
// external capture process and the orchestrator. The orchestrator only ever
// reads the transcript and consumes its change signal; producers own all
// mutation.
package transcript

import (
	"strings"
	"sync"
)

// Source is what the orchestrator consumes. Transcript is idempotent and
// safe to call frequently. Changes is a single-slot signal: a receive
// consumes exactly one "changed since last consume" notification, and
// producers signaling while one is already pending coalesce into it.
type Source interface {
	Transcript() string
	Changes() <-chan struct{}
	Clear()
}

// Buffer is an append-only in-memory transcript fed by a producer such as a
// speech-to-text bridge or a scripted replay.
type Buffer struct {
	mu      sync.Mutex
	text    strings.Builder
	changed chan struct{}
}

// NewBuffer creates an empty transcript buffer.
func NewBuffer() *Buffer {
	return &Buffer{changed: make(chan struct{}, 1)}
}

// Append adds a line to the transcript and signals the change.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	if b.text.Len() > 0 {
		b.text.WriteByte('\n')
	}
	b.text.WriteString(line)
	b.mu.Unlock()
	b.signal()
}

// signal sets the change notification without blocking; a pending signal
// absorbs the new one.
func (b *Buffer) signal() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Transcript returns the current transcript text.
func (b *Buffer) Transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Changes returns the change-signal channel.
func (b *Buffer) Changes() <-chan struct{} {
	return b.changed
}

// Clear empties the transcript and drops any pending change signal.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.text.Reset()
	b.mu.Unlock()
	select {
	case <-b.changed:
	default:
	}
}
