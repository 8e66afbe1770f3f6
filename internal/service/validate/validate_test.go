package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

func ptr[T any](v T) *T { return &v }

// Map field -> message for easier assertions
func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()

	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	fields := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	return fields
}

func validRegistration() models.Registration {
	return models.Registration{
		Email:           "a@x.com",
		Password:        "Secret123!",
		Username:        "alice",
		FirstName:       "Alice",
		LastName:        "Liddell",
		Phone:           "+14155552671",
		TermsAccepted:   true,
		PrivacyAccepted: true,
	}
}

func TestRegistration(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Registration(validRegistration()))

		noPhone := validRegistration()
		noPhone.Phone = ""
		require.NoError(t, Registration(noPhone), "phone is optional")
	})

	t.Run("every bad field reported", func(t *testing.T) {
		err := Registration(models.Registration{
			Email:     "not-an-email",
			Password:  "short",
			Username:  "al",
			FirstName: "Al1ce",
			LastName:  "",
			Phone:     "12-34",
		})

		fields := fieldsOf(t, err)
		require.Equal(t, map[string]string{
			"email":                 "Email should be valid",
			"password":              "Password must be at least 8 characters",
			"username":              "Username must be 3-20 letters or digits",
			"firstName":             "Name can contain only letters and spaces",
			"lastName":              "This field is required",
			"phone":                 "Phone number should be valid",
			"termsAccepted":         "Terms and conditions must be accepted",
			"privacyPolicyAccepted": "Privacy policy must be accepted",
		}, fields)
	})

	t.Run("username rules", func(t *testing.T) {
		tests := []struct {
			username string
			valid    bool
		}{
			{"abc", true},
			{"alice2025", true},
			{"abcdefghijklmnopqrst", true},
			{"ab", false},
			{"abcdefghijklmnopqrstu", false},
			{"alice_b", false},
			{"alice b", false},
		}

		for _, tt := range tests {
			t.Run(tt.username, func(t *testing.T) {
				r := validRegistration()
				r.Username = tt.username

				err := Registration(r)

				if tt.valid {
					require.NoError(t, err)
				} else {
					require.Contains(t, fieldsOf(t, err), "username")
				}
			})
		}
	})

	t.Run("phone rules", func(t *testing.T) {
		tests := []struct {
			phone string
			valid bool
		}{
			{"1234567", true},
			{"+441234567890", true},
			{"+14155552671", true},
			{"123456", false},
			{"+1234567890123456", false},
			{"+1 415 555 2671", false},
			{"+1234567", false}, // matches digits pattern but too short for a US number
		}

		for _, tt := range tests {
			t.Run(tt.phone, func(t *testing.T) {
				r := validRegistration()
				r.Phone = tt.phone

				err := Registration(r)

				if tt.valid {
					require.NoError(t, err)
				} else {
					require.Contains(t, fieldsOf(t, err), "phone")
				}
			})
		}
	})
}

func TestProfilePatch(t *testing.T) {
	t.Parallel()

	t.Run("empty patch is valid", func(t *testing.T) {
		require.NoError(t, ProfilePatch(models.ProfilePatch{}))
	})

	t.Run("valid fields", func(t *testing.T) {
		err := ProfilePatch(models.ProfilePatch{
			Username:  ptr("alice2"),
			FirstName: ptr("Mary Ann"),
			Phone:     ptr(""),
			AvatarURL: ptr("https://cdn.example.com/a.png"),
			Locale:    ptr("en-GB"),
			Timezone:  ptr("Europe/London"),
		})

		require.NoError(t, err)
	})

	t.Run("invalid fields", func(t *testing.T) {
		err := ProfilePatch(models.ProfilePatch{
			Username:  ptr(""),
			LastName:  ptr("O'Brien"),
			AvatarURL: ptr("ftp://example.com/a.png"),
			Locale:    ptr("not a locale"),
			Timezone:  ptr("Mars/Olympus"),
		})

		fields := fieldsOf(t, err)
		require.Len(t, fields, 5)
		require.Contains(t, fields, "username", "present username may not be cleared")
		require.Contains(t, fields, "lastName")
		require.Contains(t, fields, "profilePictureUrl")
		require.Contains(t, fields, "locale")
		require.Contains(t, fields, "timezone")
	})
}

func TestFederatedIdentity(t *testing.T) {
	t.Parallel()

	require.NoError(t, FederatedIdentity(models.FederatedIdentity{Provider: "google", Subject: "1", Email: "g@x.com"}))

	fields := fieldsOf(t, FederatedIdentity(models.FederatedIdentity{Email: "nope"}))
	require.Len(t, fields, 3)
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}
