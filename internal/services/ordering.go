package services

import "github.com/msavelyev-dev/teamcoach/internal/models"

// pickSurvivor decides which of two accounts absorbs the other during an
// identity merge. Precedence: admin beats non-admin, then onboarded beats
// not-onboarded, then the older account wins. Ties fall back to lexicographic
// id order so the choice is deterministic under concurrent resolution.
func pickSurvivor(a, b *models.Account) (survivor, loser *models.Account) {
	if a.IsAdmin != b.IsAdmin {
		if a.IsAdmin {
			return a, b
		}
		return b, a
	}
	if a.Onboarded != b.Onboarded {
		if a.Onboarded {
			return a, b
		}
		return b, a
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return a, b
		}
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

// absorbProfile fills the survivor's empty profile fields from the loser and
// combines the boolean flags so no privilege or onboarding progress is lost.
// Strength selections follow the same first-non-empty rule.
func absorbProfile(survivor, loser *models.Account) {
	survivor.IsAdmin = survivor.IsAdmin || loser.IsAdmin
	survivor.Onboarded = survivor.Onboarded || loser.Onboarded

	if survivor.FirstName == "" {
		survivor.FirstName = loser.FirstName
	}
	if survivor.LastName == "" {
		survivor.LastName = loser.LastName
	}
	if survivor.AvatarURL == "" {
		survivor.AvatarURL = loser.AvatarURL
	}
	if len(survivor.TopStrengths) == 0 {
		survivor.TopStrengths = loser.TopStrengths
	}
}
