package types

import "fmt"

// RecordNotFoundError is returned when updating or deleting a catalog record
// that does not exist. Lookups return (nil, nil) instead.
type RecordNotFoundError struct {
	Kind string
	Key  string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// DuplicateRecordError is returned when a unique key is already taken.
type DuplicateRecordError struct {
	Kind string
	Key  string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}
