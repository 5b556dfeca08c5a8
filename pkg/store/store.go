package store

import "fmt"

// IndexError marks a vector index operation that failed after embeddings were
// already computed. Ingestion treats it as retryable.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s failed: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }
