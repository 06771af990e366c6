package services

import (
	"errors"
	"fmt"
)

// Attempt errors
var (
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrSubmitConflict          = errors.New("attempt is being submitted concurrently")
)

// Content errors
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrPaperNotFound     = errors.New("question paper not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrEmptyQuestionPool = errors.New("no published questions available")
)

// Generic errors
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
)

// PermissionError carries the context of a denied access check
type PermissionError struct {
	CallerID   string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s: %s", e.Action, e.Resource, e.Reason)
}

func NewPermissionError(callerID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		CallerID:   callerID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
