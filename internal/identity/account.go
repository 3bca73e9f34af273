package identity

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Storage keys shared with the browser client.
const (
	SessionKey  = "khojiUser"
	AccountsKey = "khojiUsers"
)

const (
	MessageFieldsRequired     = "All fields are required"
	MessageEmailRegistered    = "Email already registered"
	MessagePasswordTooShort   = "Password must be at least 6 characters"
	MessageInvalidEmail       = "Invalid email format"
	MessagePasswordMismatch   = "Passwords do not match"
	MessageInvalidCredentials = "Invalid email or password"

	minPasswordLength = 6
	createdAtLayout   = "2006-01-02T15:04:05.000Z07:00"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("identity: validation failed")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong password alike.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidationError reports a signup rule violation with its user-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(message string) error {
	return &ValidationError{Message: message}
}

// Account is a registered user. The password is stored in clear text; records
// handed out as the session never carry it.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
}

// WithoutPassword returns the session-safe copy of the account.
func (a Account) WithoutPassword() Account {
	a.Password = ""
	return a
}

// Timestamp serializes as an ISO-8601 UTC string with millisecond precision.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(createdAtLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}
