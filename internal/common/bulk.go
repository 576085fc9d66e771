// File: internal/common/bulk.go
package common

// BulkItemError records a single failed item inside a bulk operation,
// keyed by whatever identifies the item (a user ID, a notification ID).
type BulkItemError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// BulkResult is a multi-status outcome for batch operations. Partial
// failures are reported here, never silently dropped.
type BulkResult struct {
	Succeeded int             `json:"succeeded"`
	Failures  []BulkItemError `json:"failures,omitempty"`
}

// AddFailure appends a failed item to the result.
func (r *BulkResult) AddFailure(key, message string) {
	r.Failures = append(r.Failures, BulkItemError{Key: key, Message: message})
}

// HasFailures reports whether any item in the batch failed.
func (r *BulkResult) HasFailures() bool {
	return len(r.Failures) > 0
}
