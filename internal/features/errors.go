package features

import "fmt"

// ExtractionError marks a data-store failure mid-feature-assembly. It is fatal
// to the single worker's pipeline; batch loops isolate it per worker.
type ExtractionError struct {
	WorkerID string
	Stage    string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("feature extraction failed for worker %s at stage %s: %v", e.WorkerID, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
