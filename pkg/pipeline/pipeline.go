package pipeline

import "fmt"

// ConfigurationError reports a wiring mistake caught at construction, such as
// an embedding dimension that does not match the index. Never retryable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func checkDimensions(embedderDim, indexDim int) error {
	if embedderDim != indexDim {
		return &ConfigurationError{
			Reason: fmt.Sprintf("embedder produces %d-dimensional vectors but index expects %d", embedderDim, indexDim),
		}
	}
	return nil
}
