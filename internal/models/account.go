// Package models contains the durable entities of the persistence core.
package models

import "time"

// MaxTopStrengths bounds the ordered strength selections on accounts and
// team members.
const MaxTopStrengths = 5

// Account is the durable identity record for one person.
//
// ID is internal and immutable once assigned. SubjectID is the identity
// provider's current subject for this person; it starts equal to ID and is
// rewritten when the provider rotates subjects, so conversations and team
// members keep a stable owner across rotations.
type Account struct {
	ID           string
	SubjectID    string
	Email        string
	FirstName    string
	LastName     string
	AvatarURL    string
	IsAdmin      bool
	Onboarded    bool
	TopStrengths []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the account has been soft-deleted (the losing side
// of a merge).
func (a *Account) Deleted() bool {
	return a.DeletedAt != nil
}

// TeamMember is one person on a manager's roster, owned by exactly one
// account. Name is unique within the owner.
type TeamMember struct {
	ID        string
	AccountID string
	Name      string
	Strengths []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityClaim is the per-request assertion from the identity provider.
// It is never persisted; it is the input to identity resolution.
type IdentityClaim struct {
	SubjectID string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}
