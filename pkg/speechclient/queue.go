package speechclient

import (
	"context"
	"sync"
)

// Queue bounds.
const (
	DefaultMaxItems = 10
	DefaultMaxBytes = 10 << 20

	// An upload is dropped for good once it has failed this many retries.
	maxRetryCount = 2
)

type pending struct {
	req        UploadRequest
	retryCount int
}

func (p *pending) size() int64 {
	return int64(len(p.req.AnalysisJSON) + len(p.req.Audio))
}

// Uploader is the flush target; *Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, up UploadRequest) (*UploadResult, error)
}

// FlushReport summarises one flush pass.
type FlushReport struct {
	Sent    int
	Retried int
	// Dropped lists analysis ids surfaced as permanently failed.
	Dropped []string
}

// RetryQueue is a bounded FIFO store for uploads that failed in flight.
// It holds at most MaxItems entries and MaxBytes of payload; overflow
// evicts the oldest entry. Server-side idempotency on analysis_id makes
// replaying any entry safe.
type RetryQueue struct {
	mu       sync.Mutex
	items    []pending
	bytes    int64
	maxItems int
	maxBytes int64
}

// NewRetryQueue builds a queue with the given bounds (defaults when <= 0).
func NewRetryQueue(maxItems int, maxBytes int64) *RetryQueue {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &RetryQueue{maxItems: maxItems, maxBytes: maxBytes}
}

// Enqueue stores a failed upload for a later flush. An entry larger than
// the whole queue budget is rejected outright.
func (q *RetryQueue) Enqueue(req UploadRequest) bool {
	entry := pending{req: req}
	if entry.size() > q.maxBytes {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, entry)
	q.bytes += entry.size()
	q.evictLocked()
	return true
}

// Len reports the number of queued uploads.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bytes reports the queued payload size.
func (q *RetryQueue) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Flush retries every pending upload in FIFO order. Successful entries
// are removed; failed entries have retry_count incremented and are kept
// unless they exceed the retry cap, in which case they are dropped and
// reported.
func (q *RetryQueue) Flush(ctx context.Context, uploader Uploader) FlushReport {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.bytes = 0
	q.mu.Unlock()

	var report FlushReport
	var keep []pending
	for _, entry := range batch {
		if ctx.Err() != nil {
			keep = append(keep, entry)
			continue
		}
		if _, err := uploader.Upload(ctx, entry.req); err == nil {
			report.Sent++
			continue
		}
		entry.retryCount++
		if entry.retryCount >= maxRetryCount {
			report.Dropped = append(report.Dropped, entry.req.AnalysisID)
			continue
		}
		report.Retried++
		keep = append(keep, entry)
	}

	if len(keep) > 0 {
		q.mu.Lock()
		q.items = append(keep, q.items...)
		q.bytes = 0
		for i := range q.items {
			q.bytes += q.items[i].size()
		}
		q.evictLocked()
		q.mu.Unlock()
	}
	return report
}

// evictLocked drops oldest entries until both bounds hold.
func (q *RetryQueue) evictLocked() {
	for len(q.items) > q.maxItems || q.bytes > q.maxBytes {
		q.bytes -= q.items[0].size()
		q.items = q.items[1:]
	}
}
