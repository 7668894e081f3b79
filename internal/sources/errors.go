package sources

import "fmt"

// PanicError reports an adapter that panicked during Fetch.
type PanicError struct {
	Source string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("source %s panicked: %v", e.Source, e.Value)
}

// ErrAllRequestsFailed reports an adapter whose every request failed.
type ErrAllRequestsFailed struct {
	Source   string
	Requests int
	Last     error
}

func (e *ErrAllRequestsFailed) Error() string {
	return fmt.Sprintf("source %s: all %d requests failed: %v", e.Source, e.Requests, e.Last)
}

func (e *ErrAllRequestsFailed) Unwrap() error {
	return e.Last
}
