package models

import "time"

// ConversationBackup is a point-in-time snapshot of an account's
// conversations and messages. Payload is an opaque serialized blob; restore
// consumes it read-only and never mutates the live data it was taken from.
type ConversationBackup struct {
	ID         string
	AccountID  string
	Payload    []byte
	StorageKey string // object-storage key when the blob was archived off-site
	CreatedAt  time.Time
	RestoredAt *time.Time
}
