package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func cycleError(message string) *DomainError {
	return domainError(http.StatusConflict, "CYCLE_ERROR", message, nil)
}

func remoteError(err error) *DomainError {
	return domainError(http.StatusBadGateway, "REMOTE_ERROR", "Storage operation failed", err.Error())
}

// BatchItemError identifies one failed member of a bulk operation, with
// enough detail to retry just that member.
type BatchItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult is the aggregate outcome of a fan-out operation. Bulk actions
// never abort on first failure, so both slices can be populated at once.
type BatchResult struct {
	Succeeded []string         `json:"succeeded"`
	Failed    []BatchItemError `json:"failed"`
}

func newBatchResult() BatchResult {
	return BatchResult{Succeeded: []string{}, Failed: []BatchItemError{}}
}

func (r *BatchResult) ok(id string) {
	r.Succeeded = append(r.Succeeded, id)
}

func (r *BatchResult) fail(id string, err error) {
	r.Failed = append(r.Failed, BatchItemError{ID: id, Error: err.Error()})
}

// Err returns a PARTIAL_FAILURE domain error when any member failed, nil
// otherwise.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return domainError(http.StatusOK, "PARTIAL_FAILURE",
		fmt.Sprintf("%d of %d items failed", len(r.Failed), len(r.Failed)+len(r.Succeeded)), r)
}
