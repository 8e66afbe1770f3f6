package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
	AuthErrorType       = "authentication_failed"
)

var validate = validator.New()

func init() {
	// Return on 'TagName' json tag instead of struct name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		// skip if tag key says it should be ignored
		if name == "-" {
			return ""
		}
		return name
	})
}

type Struct any

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	JSONWithStatus(w, data, http.StatusOK)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, error string, code int) {
	Fail(w, ServiceErrorType, error, code)
}

// Render error response of any type
func Fail(w http.ResponseWriter, errorType string, message string, code int) {
	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	JSONWithStatus(w, response, code)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   DecodingErrorType,
		Message: "",
	}

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make([]apperrors.FieldError, 0, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		default:
			message = "Invalid value"
		}

		fields = append(fields, apperrors.FieldError{Field: fieldError.Field(), Message: message})
	}

	FieldErrors(w, fields)
}

// Render field errors produced by service validation
func FieldErrors(w http.ResponseWriter, fields []apperrors.FieldError) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(fields)),
	}

	for _, f := range fields {
		// First message wins if a field failed several rules
		if _, ok := response.Fields[f.Field]; !ok {
			response.Fields[f.Field] = f.Message
		}
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// Error renders a service error with the status code it maps to.
// It returns false if err is unknown and 500 was rendered, so caller may log it.
func Error(w http.ResponseWriter, err error) bool {
	var verr *apperrors.ValidationError

	switch {
	case errors.As(err, &verr):
		FieldErrors(w, verr.Fields)

	case errors.Is(err, apperrors.ErrDuplicateEmail):
		ServiceError(w, "Email is already registered", http.StatusConflict)
	case errors.Is(err, apperrors.ErrDuplicateUsername):
		ServiceError(w, "Username is already taken", http.StatusConflict)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		ServiceError(w, "Account not found", http.StatusNotFound)

	case errors.Is(err, apperrors.ErrInvalidCredentials):
		Fail(w, AuthErrorType, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrAccountLocked):
		// Lock state is disclosed, message carries the unlock time
		Fail(w, AuthErrorType, capitalize(err.Error()), http.StatusLocked)
	case errors.Is(err, apperrors.ErrAccountDisabled):
		Fail(w, AuthErrorType, "Account is disabled", http.StatusUnauthorized)

	case errors.Is(err, apperrors.ErrNoTokenProvided):
		Fail(w, AuthErrorType, "Authorization token is required", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrTokenExpired):
		Fail(w, AuthErrorType, "Token has expired, please login again", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrMalformedToken):
		Fail(w, AuthErrorType, "Token is malformed", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrInvalidSignature):
		Fail(w, AuthErrorType, "Token signature is invalid", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrTokenRevoked):
		Fail(w, AuthErrorType, "Token has been revoked", http.StatusUnauthorized)

	default:
		ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Bind decodes JSON request body into type T. Writes decode error response on failure.
func Bind[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	return value, nil
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	value, err := Bind[T](w, r)
	if err != nil {
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// JSONWithStatus sends data as json and enforces status code
func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
