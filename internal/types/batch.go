//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// BatchStatus is the overall outcome of a scheduled batch invocation.
type BatchStatus string

// Batch statuses. Skipped means the run declined to start (for example the
// batch lock was held) and is distinct from failed.
const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchSkipped   BatchStatus = "skipped"
	BatchFailed    BatchStatus = "failed"
)

// BatchResult is returned by every batch entry point and rendered as-is by
// the cron endpoints.
type BatchResult struct {
	Task       string         `json:"task"`
	Status     BatchStatus    `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

// NewBatchResult starts a result for task at the current time.
func NewBatchResult(task string) *BatchResult {
	return &BatchResult{Task: task, Status: BatchCompleted, Counts: map[string]int{}, StartedAt: time.Now()}
}

// Add increments a named counter.
func (r *BatchResult) Add(name string, n int) {
	if r.Counts == nil {
		r.Counts = map[string]int{}
	}
	r.Counts[name] += n
}

// Fail records a per-item error without failing the batch.
func (r *BatchResult) Fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Skip marks the batch as skipped with a reason.
func (r *BatchResult) Skip(reason string) *BatchResult {
	r.Status = BatchSkipped
	r.Reason = reason
	return r
}

// Finish stamps the duration and settles the status: a completed batch with
// per-item errors becomes partial.
func (r *BatchResult) Finish() *BatchResult {
	r.DurationMS = time.Since(r.StartedAt).Milliseconds()
	if r.Status == BatchCompleted && len(r.Errors) > 0 {
		r.Status = BatchPartial
	}
	return r
}
