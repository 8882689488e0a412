// Package common defines shared constants and sentinel errors used across
// the persistence core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.

	// ErrNotFound is returned when an entity is absent or not owned by the
	// requesting account. Ownership failures map to ErrNotFound on purpose:
	// the existence of another user's data must not be revealed.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable wraps any durable-store failure that is not a
	// domain condition. The core never retries it silently; retry policy
	// belongs to the request layer.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateEmail is returned when an account creation collides with
	// an existing active account for the same email.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrDuplicateName is returned when a team member name collides with an
	// existing member of the same owner.
	ErrDuplicateName = errors.New("duplicate team member name")

	// Service-level errors.

	// ErrIdentityResolutionFailed means a claim could not be resolved to an
	// account. The request layer treats it as an authentication failure for
	// that request only.
	ErrIdentityResolutionFailed = errors.New("identity resolution failed")

	// ErrInvalidClaim is returned for malformed identity claims (missing
	// subject or email).
	ErrInvalidClaim = errors.New("invalid identity claim")

	// ErrMigrationItemFailed marks a per-item parse/import failure during a
	// history migration. Collected per item, never fatal to the batch.
	ErrMigrationItemFailed = errors.New("migration item failed")

	// ErrInvalidToken is returned for invalid or malformed identity tokens.
	ErrInvalidToken = errors.New("invalid token")
)
