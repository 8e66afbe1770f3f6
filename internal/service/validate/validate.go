package validate

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z ]+$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", isPhone)
	_ = v.RegisterValidation("alphaspace", isAlphaSpace)
	return v
}

// Digits with optional leading '+'. International numbers also have to be possible for their country.
func isPhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if !phonePattern.MatchString(value) {
		return false
	}
	if !strings.HasPrefix(value, "+") {
		return true
	}

	num, err := phonenumbers.Parse(value, "")
	return err == nil && phonenumbers.IsPossibleNumber(num)
}

func isAlphaSpace(fl validator.FieldLevel) bool {
	return namePattern.MatchString(fl.Field().String())
}

// One field check: validator tag plus message for every tag that may fail
type rule struct {
	field    string
	value    any
	tag      string
	messages map[string]string
	fallback string
}

func (r rule) check() (apperrors.FieldError, bool) {
	err := v.Var(r.value, r.tag)
	if err == nil {
		return apperrors.FieldError{}, true
	}

	message := r.fallback
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		if m, ok := r.messages[errs[0].Tag()]; ok {
			message = m
		}
	}

	return apperrors.FieldError{Field: r.field, Message: message}, false
}

func run(rules ...rule) error {
	var fields []apperrors.FieldError
	for _, r := range rules {
		if fe, ok := r.check(); !ok {
			fields = append(fields, fe)
		}
	}
	return apperrors.NewValidationError(fields)
}

var required = map[string]string{"required": "This field is required"}

func emailRule(value string) rule {
	return rule{field: "email", value: value, tag: "required,email,max=254", messages: required, fallback: "Email should be valid"}
}

func usernameRule(value string, tag string) rule {
	return rule{field: "username", value: value, tag: tag, messages: required, fallback: "Username must be 3-20 letters or digits"}
}

func nameRule(field string, value string) rule {
	return rule{field: field, value: value, tag: "required,max=50,alphaspace", messages: required, fallback: "Name can contain only letters and spaces"}
}

func phoneRule(value string) rule {
	return rule{field: "phone", value: value, tag: "omitempty,phone", fallback: "Phone number should be valid"}
}

// Trimmed lower case email, the form accounts are stored and looked up with
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check sign-up input. Returns *apperrors.ValidationError listing every bad field.
func Registration(r models.Registration) error {
	return run(
		emailRule(r.Email),
		rule{
			field: "password", value: r.Password, tag: "required,min=8,max=128",
			messages: map[string]string{
				"required": "This field is required",
				"min":      "Password must be at least 8 characters",
				"max":      "Password must be at most 128 characters",
			},
		},
		usernameRule(r.Username, "required,min=3,max=20,alphanum"),
		nameRule("firstName", r.FirstName),
		nameRule("lastName", r.LastName),
		phoneRule(r.Phone),
		rule{field: "termsAccepted", value: r.TermsAccepted, tag: "required", fallback: "Terms and conditions must be accepted"},
		rule{field: "privacyPolicyAccepted", value: r.PrivacyAccepted, tag: "required", fallback: "Privacy policy must be accepted"},
	)
}

// Check present fields of a profile patch. Optional fields may be cleared with empty string.
func ProfilePatch(p models.ProfilePatch) error {
	var rules []rule

	if p.Username != nil {
		rules = append(rules, usernameRule(*p.Username, "required,min=3,max=20,alphanum"))
	}
	if p.FirstName != nil {
		rules = append(rules, nameRule("firstName", *p.FirstName))
	}
	if p.LastName != nil {
		rules = append(rules, nameRule("lastName", *p.LastName))
	}
	if p.Phone != nil {
		rules = append(rules, phoneRule(*p.Phone))
	}
	if p.AvatarURL != nil {
		rules = append(rules, rule{field: "profilePictureUrl", value: *p.AvatarURL, tag: "omitempty,http_url,max=2048", fallback: "Profile picture must be an http(s) URL"})
	}
	if p.Locale != nil {
		rules = append(rules, rule{field: "locale", value: *p.Locale, tag: "omitempty,bcp47_language_tag", fallback: "Locale must be a language tag like en-US"})
	}
	if p.Timezone != nil {
		rules = append(rules, rule{field: "timezone", value: *p.Timezone, tag: "omitempty,timezone", fallback: "Timezone must be an IANA zone name like Europe/Paris"})
	}

	return run(rules...)
}

// Check identity handed over by an external provider
func FederatedIdentity(id models.FederatedIdentity) error {
	return run(
		emailRule(id.Email),
		rule{field: "provider", value: id.Provider, tag: "required", messages: required},
		rule{field: "subject", value: id.Subject, tag: "required", messages: required},
	)
}
