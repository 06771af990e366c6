package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/prepstack/practice-service/internal/models"
)

// guardAttempt enforces attempt ownership. Owned attempts are visible only to
// their exact owner. Ownerless attempts belong to the anonymous session that
// created them; an authenticated caller never matches one, because the
// unguessable attempt ID is the only credential an anonymous session holds.
func guardAttempt(attempt *models.TestAttempt, caller Caller, action string) error {
	if attempt.OwnerID != nil {
		if !caller.Authenticated() {
			return NewPermissionError(caller.UserID, attempt.ID, "attempt", action, "attempt belongs to a registered user")
		}
		if *attempt.OwnerID != caller.UserID {
			return NewPermissionError(caller.UserID, attempt.ID, "attempt", action, "not owned by caller")
		}
		return nil
	}

	if caller.Authenticated() {
		return NewPermissionError(caller.UserID, attempt.ID, "attempt", action, "anonymous attempt is not linked to an account")
	}
	return nil
}

// newAttemptID builds an attempt identifier with enough entropy that
// possession of the ID acts as the access token for anonymous attempts.
func newAttemptID() (string, error) {
	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate attempt id: %w", err)
	}
	return uuid.NewString() + "-" + hex.EncodeToString(suffix), nil
}
