package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

func ProfileFromAccount(a Account) Profile {
	return Profile{
		ID:            a.ID,
		Email:         a.Email,
		Username:      a.Username,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Phone:         a.Phone,
		AvatarURL:     a.AvatarURL,
		Locale:        a.Locale,
		Timezone:      a.Timezone,
		EmailVerified: a.EmailVerified,
		LastLoginAt:   a.LastLoginAt,
		CreatedAt:     a.CreatedAt,
	}
}

// Build a fresh enabled, unlocked and unverified account from the sign-up input.
// Consent timestamps are stamped with now when given.
func AccountFromRegistration(r Registration, passwordHash string, now time.Time) Account {
	a := Account{
		ID:           uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: passwordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Phone:        r.Phone,
		Enabled:      true,
	}

	if r.TermsAccepted {
		a.TermsAcceptedAt = &now
	}
	if r.PrivacyAccepted {
		a.PrivacyAcceptedAt = &now
	}

	return a
}

// Build an account for an identity seen for the first time.
// It has no password and its email is considered verified by the provider.
func AccountFromIdentity(id FederatedIdentity, username string, now time.Time) Account {
	first, last := SplitDisplayName(id.DisplayName)

	return Account{
		ID:            uuid.New(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Email:         id.Email,
		Username:      username,
		FirstName:     first,
		LastName:      last,
		EmailVerified: true,
		Enabled:       true,
		Provider:      id.Provider,
		ProviderID:    id.Subject,
	}
}

// Apply non-nil patch fields to the account. Security fields are never changed.
func ApplyPatch(a Account, p ProfilePatch) Account {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&a.Username, p.Username)
	set(&a.FirstName, p.FirstName)
	set(&a.LastName, p.LastName)
	set(&a.Phone, p.Phone)
	set(&a.AvatarURL, p.AvatarURL)
	set(&a.Locale, p.Locale)
	set(&a.Timezone, p.Timezone)

	return a
}

// "Ada King Lovelace" -> ("Ada King", "Lovelace"); single word goes to first name
func SplitDisplayName(name string) (first string, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}
