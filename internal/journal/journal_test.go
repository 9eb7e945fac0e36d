package journal

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintrunner/internal/mint"
)

func TestJournalRecords(t *testing.T) {
	j := New()

	_, ok := j.Session()
	assert.False(t, ok)
	_, ok = j.LastFailure()
	assert.False(t, ok)

	s := mint.Session{Requested: 3}
	s.Successful++
	j.AttemptRecorded(mint.Attempt{Index: 0, Outcome: mint.Success}, s)
	s.Failed++
	j.AttemptRecorded(mint.Attempt{Index: 1, Outcome: mint.Failure, Category: mint.CategoryTransient, Err: errors.New("reset")}, s)
	s.Failed++
	s.StoppedEarly = true
	j.AttemptRecorded(mint.Attempt{Index: 2, Outcome: mint.Failure, Category: mint.CategoryQuotaExhausted}, s)

	assert.Equal(t, 3, j.Len())
	assert.Equal(t, map[mint.Category]int{
		mint.CategoryTransient:      1,
		mint.CategoryQuotaExhausted: 1,
	}, j.FailuresByCategory())

	last, ok := j.LastFailure()
	require.True(t, ok)
	assert.Equal(t, 2, last.Index)

	got, ok := j.Session()
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestJournalReturnsCopies(t *testing.T) {
	j := New()
	j.AttemptRecorded(mint.Attempt{Index: 0, Outcome: mint.Failure, Category: mint.CategoryTransient}, mint.Session{})

	attempts := j.Attempts()
	attempts[0].Index = 99
	byCat := j.FailuresByCategory()
	byCat[mint.CategoryTransient] = 99

	assert.Equal(t, 0, j.Attempts()[0].Index)
	assert.Equal(t, 1, j.FailuresByCategory()[mint.CategoryTransient])
}

func TestJournalConcurrentReads(t *testing.T) {
	j := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = j.Len()
			_, _ = j.Session()
		}
	}()
	for i := 0; i < 500; i++ {
		j.AttemptRecorded(mint.Attempt{Index: i}, mint.Session{Requested: 500, Successful: i + 1})
	}
	wg.Wait()
	assert.Equal(t, 500, j.Len())
}

func TestJournalBatchFinished(t *testing.T) {
	j := New()
	s := mint.Session{ID: "b", Requested: 5, Successful: 2}
	j.AttemptRecorded(mint.Attempt{Index: 1, Outcome: mint.Success}, s)
	assert.False(t, j.Finished())

	s.StoppedEarly = true
	s.StopReason = mint.StopReasonInterrupted
	j.BatchFinished(s)

	got, ok := j.Session()
	require.True(t, ok)
	assert.True(t, j.Finished())
	assert.True(t, got.StoppedEarly)
	assert.Equal(t, mint.StopReasonInterrupted, got.StopReason)
	assert.Equal(t, 1, j.Len())
}

func TestJournalSessionWithoutAttempts(t *testing.T) {
	j := New()
	j.BatchFinished(mint.Session{Requested: 3, StoppedEarly: true, StopReason: mint.StopReasonInterrupted})

	got, ok := j.Session()
	require.True(t, ok)
	assert.Equal(t, 3, got.Requested)
}
