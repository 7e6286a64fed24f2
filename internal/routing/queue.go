package routing

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/edgard/supportbot/internal/database"
)

// QueueEntry is a customer waiting for an operator who speaks Language.
type QueueEntry struct {
	ParticipantID int64
	Language      string
	EnqueuedAt    time.Time
}

// Queue is the FIFO waiting area for customers with no matching operator.
// Mutations are serialized by the Engine; the read lock lets diagnostics
// read a consistent snapshot without entering the engine's critical section.
type Queue struct {
	mu      sync.RWMutex
	entries []QueueEntry
	now     func() time.Time
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue appends the customer to the tail. A customer already queued keeps their
// position; only the entry's language is refreshed. Returns true if a new entry was added.
func (q *Queue) Enqueue(customer *database.Participant) bool {
	if customer == nil || customer.SelectedLanguage == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if idx := q.indexLocked(customer.ID); idx >= 0 {
		q.entries[idx].Language = customer.SelectedLanguage
		return false
	}

	q.entries = append(q.entries, QueueEntry{
		ParticipantID: customer.ID,
		Language:      customer.SelectedLanguage,
		EnqueuedAt:    q.now(),
	})
	return true
}

// DequeueFirstMatching removes and returns the entry closest to the head that satisfies match.
// The relative order of the remaining entries is preserved.
func (q *Queue) DequeueFirstMatching(match func(QueueEntry) bool) (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := slices.IndexFunc(q.entries, match)
	if idx < 0 {
		return QueueEntry{}, false
	}

	entry := q.entries[idx]
	q.entries = slices.Delete(q.entries, idx, idx+1)
	return entry, true
}

// Restore puts a previously dequeued entry back at the position its enqueue time gives it.
// It is a no-op if the participant is already queued.
func (q *Queue) Restore(entry QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(entry.ParticipantID) >= 0 {
		return
	}

	idx := slices.IndexFunc(q.entries, func(e QueueEntry) bool {
		return e.EnqueuedAt.After(entry.EnqueuedAt)
	})
	if idx < 0 {
		idx = len(q.entries)
	}
	q.entries = slices.Insert(q.entries, idx, entry)
}

// PeekFirst returns the head entry without removing it.
func (q *Queue) PeekFirst() (QueueEntry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// Remove drops the participant's entry. Returns false if they were not queued.
func (q *Queue) Remove(participantID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(participantID)
	if idx < 0 {
		return false
	}
	q.entries = slices.Delete(q.entries, idx, idx+1)
	return true
}

// RemoveOlderThan evicts every entry enqueued before cutoff and returns them head first.
func (q *Queue) RemoveOlderThan(cutoff time.Time) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept, expired := lo.FilterReject(q.entries, func(e QueueEntry, _ int) bool {
		return !e.EnqueuedAt.Before(cutoff)
	})
	q.entries = kept
	return expired
}

// Position returns the 1-based position of the participant, or 0 if not queued.
func (q *Queue) Position(participantID int64) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.indexLocked(participantID) + 1
}

// Len returns the number of waiting customers.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.entries)
}

// Snapshot returns a copy of the queue, head first.
func (q *Queue) Snapshot() []QueueEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return slices.Clone(q.entries)
}

func (q *Queue) indexLocked(participantID int64) int {
	return slices.IndexFunc(q.entries, func(e QueueEntry) bool {
		return e.ParticipantID == participantID
	})
}
