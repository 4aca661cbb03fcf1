package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultRecorderCap = 1024

// Recorded wraps an emitted event with its assigned identifier and the time it
// was observed.
type Recorded struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ObservedAt time.Time `json:"observedAt"`
	Event      Event     `json:"event"`
}

// Recorder retains a bounded window of recent events for the RPC query
// surface. Oldest entries are dropped once the capacity is reached.
type Recorder struct {
	mu      sync.RWMutex
	entries []Recorded
	cap     int
	nowFunc func() time.Time
}

// NewRecorder constructs a recorder retaining up to capacity events. A
// non-positive capacity selects the default.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultRecorderCap
	}
	return &Recorder{cap: capacity, nowFunc: time.Now}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	entry := Recorded{
		ID:         uuid.NewString(),
		Type:       evt.EventType(),
		ObservedAt: r.nowFunc().UTC(),
		Event:      evt,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.cap {
		r.entries = append([]Recorded(nil), r.entries[len(r.entries)-r.cap:]...)
	}
}

// Recent returns up to limit most recent events, newest last. A non-positive
// limit returns the whole retained window.
func (r *Recorder) Recent(limit int) []Recorded {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]Recorded(nil), entries...)
}
