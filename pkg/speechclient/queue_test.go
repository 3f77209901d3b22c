package speechclient

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedUploader struct {
	fail  map[string]bool
	order []string
}

func (u *scriptedUploader) Upload(ctx context.Context, up UploadRequest) (*UploadResult, error) {
	u.order = append(u.order, up.AnalysisID)
	if u.fail[up.AnalysisID] {
		return nil, errors.New("upstream unavailable")
	}
	return &UploadResult{AnalysisID: up.AnalysisID, Persisted: true}, nil
}

func req(id string, size int) UploadRequest {
	return UploadRequest{AnalysisID: id, AnalysisJSON: make([]byte, size)}
}

func TestEnqueueEvictsOldestBeyondItemBound(t *testing.T) {
	q := NewRetryQueue(3, 0)
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(req(fmt.Sprintf("an-%d", i), 10)))
	}
	assert.Equal(t, 3, q.Len())

	// Only the three newest survive, in arrival order.
	uploader := &scriptedUploader{}
	q.Flush(context.Background(), uploader)
	assert.Equal(t, []string{"an-2", "an-3", "an-4"}, uploader.order)
}

func TestEnqueueEvictsOldestBeyondByteBound(t *testing.T) {
	q := NewRetryQueue(10, 100)
	require.True(t, q.Enqueue(req("an-0", 60)))
	require.True(t, q.Enqueue(req("an-1", 60)))

	assert.Equal(t, 1, q.Len())
	assert.EqualValues(t, 60, q.Bytes())
}

func TestEnqueueRejectsEntryLargerThanBudget(t *testing.T) {
	q := NewRetryQueue(10, 100)
	assert.False(t, q.Enqueue(req("an-huge", 101)))
	assert.Zero(t, q.Len())
}

func TestFlushRetriesThenDrops(t *testing.T) {
	q := NewRetryQueue(0, 0)
	require.True(t, q.Enqueue(req("an-ok", 10)))
	require.True(t, q.Enqueue(req("an-bad", 10)))

	uploader := &scriptedUploader{fail: map[string]bool{"an-bad": true}}

	report := q.Flush(context.Background(), uploader)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Retried)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, 1, q.Len())

	// Second failure hits the retry cap; the entry is dropped and named.
	report = q.Flush(context.Background(), uploader)
	assert.Zero(t, report.Sent)
	assert.Zero(t, report.Retried)
	assert.Equal(t, []string{"an-bad"}, report.Dropped)
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Bytes())
}

func TestFlushKeepsEntriesOnCancelledContext(t *testing.T) {
	q := NewRetryQueue(0, 0)
	require.True(t, q.Enqueue(req("an-0", 10)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := q.Flush(ctx, &scriptedUploader{})
	assert.Zero(t, report.Sent)
	assert.Equal(t, 1, q.Len())
}
