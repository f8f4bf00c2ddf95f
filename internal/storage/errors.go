package storage

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Error represents a failed object-store operation.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s gs://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a "not found"-shaped storage error.
// Anything else (auth failures, outages, quota) must not be mistaken for a
// missing object.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 404
	}
	return false
}
