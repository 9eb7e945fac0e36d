// Package journal keeps the current run's mint attempts in memory.
package journal

import (
	"sync"

	"mintrunner/internal/mint"
)

var (
	_ mint.Observer      = (*Journal)(nil)
	_ mint.BatchObserver = (*Journal)(nil)
)

// Journal records attempts as the orchestrator reports them. It is safe to read from
// other goroutines (the health endpoint) while a batch is running. Nothing is persisted.
type Journal struct {
	mu         sync.RWMutex
	attempts   []mint.Attempt
	byCategory map[mint.Category]int
	last       mint.Session
	finished   bool
}

func New() *Journal {
	return &Journal{
		byCategory: make(map[mint.Category]int),
	}
}

func (j *Journal) AttemptRecorded(a mint.Attempt, s mint.Session) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, a)
	if a.Outcome == mint.Failure {
		j.byCategory[a.Category]++
	}
	j.last = s
}

// BatchFinished stores the final session, including stops that happen between attempts.
func (j *Journal) BatchFinished(s mint.Session) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.last = s
	j.finished = true
}

func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.attempts)
}

// Attempts returns a copy of everything recorded so far, in order.
func (j *Journal) Attempts() []mint.Attempt {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]mint.Attempt, len(j.attempts))
	copy(out, j.attempts)
	return out
}

func (j *Journal) FailuresByCategory() map[mint.Category]int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[mint.Category]int, len(j.byCategory))
	for k, v := range j.byCategory {
		out[k] = v
	}
	return out
}

// LastFailure returns the most recent failed attempt, if any.
func (j *Journal) LastFailure() (mint.Attempt, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for i := len(j.attempts) - 1; i >= 0; i-- {
		if j.attempts[i].Outcome == mint.Failure {
			return j.attempts[i], true
		}
	}
	return mint.Attempt{}, false
}

// Session returns the latest session snapshot seen, and false before any batch reported.
func (j *Journal) Session() (mint.Session, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last, j.finished || len(j.attempts) > 0
}

// Finished reports whether the batch has returned.
func (j *Journal) Finished() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finished
}
