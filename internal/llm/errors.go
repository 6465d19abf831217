package llm

import "fmt"

// GenerationError is returned when the provider fails or returns unusable output.
type GenerationError struct {
	Provider Provider
	Model    string
	Message  string
	Cause    error
}

func (e *GenerationError) Error() string {
	prefix := fmt.Sprintf("generation failed (%s", e.Provider)
	if e.Model != "" {
		prefix += "/" + e.Model
	}
	prefix += ")"
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
