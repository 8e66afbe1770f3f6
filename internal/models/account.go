package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time

	Email        string
	Username     string
	PasswordHash string // empty for accounts created by an external identity provider

	FirstName string
	LastName  string
	Phone     string
	AvatarURL string
	Locale    string
	Timezone  string

	EmailVerified bool
	Enabled       bool

	// Security state, never touched by profile updates
	Locked              bool
	LockedUntil         *time.Time
	FailedLoginAttempts int
	LastLoginAt         *time.Time

	TermsAcceptedAt   *time.Time
	PrivacyAcceptedAt *time.Time

	// External identity linkage, both empty for local accounts
	Provider   string
	ProviderID string
}

// Account has an identity provider attached
func (a Account) IsFederated() bool {
	return a.Provider != "" && a.ProviderID != ""
}

// Profile is the public view of an account
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Phone         string     `json:"phone,omitempty"`
	AvatarURL     string     `json:"profilePictureUrl,omitempty"`
	Locale        string     `json:"locale,omitempty"`
	Timezone      string     `json:"timezone,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Registration is the input of a local sign-up
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Username        string `json:"username"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	TermsAccepted   bool   `json:"termsAccepted"`
	PrivacyAccepted bool   `json:"privacyPolicyAccepted"`
}

// ProfilePatch holds a partial profile update: nil fields stay unchanged.
// Email, password and security state are deliberately absent.
type ProfilePatch struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"profilePictureUrl"`
	Locale    *string `json:"locale"`
	Timezone  *string `json:"timezone"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Username == nil && p.FirstName == nil && p.LastName == nil &&
		p.Phone == nil && p.AvatarURL == nil && p.Locale == nil && p.Timezone == nil
}

// FederatedIdentity is an identity already authenticated by an external provider
type FederatedIdentity struct {
	Provider    string
	Subject     string // provider-assigned id
	Email       string
	DisplayName string
}
