// Package validation cleans and checks inbound contact and chat payloads.
// Every function here is pure.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxSanitizedLength caps any sanitized field, in characters.
const MaxSanitizedLength = 2000

var (
	validate = newValidator()

	looseEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	sessionIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	markupReplacer    = strings.NewReplacer("<", "", ">", "")
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return looseEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// ContactForm is the payload of a contact submission.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Result lists every rule a payload violates.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err returns nil for a valid result and an *Error otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Errors: r.Errors}
}

// Error carries validation messages across service boundaries.
type Error struct {
	Errors []string
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// AsError unwraps err to a validation *Error.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Sanitize removes angle brackets, trims surrounding whitespace and caps the
// result at MaxSanitizedLength characters. It does not escape HTML.
func Sanitize(raw string) string {
	s := strings.TrimSpace(markupReplacer.Replace(raw))
	if utf8.RuneCountInString(s) <= MaxSanitizedLength {
		return s
	}
	return string([]rune(s)[:MaxSanitizedLength])
}

// SanitizeContactForm sanitizes every field of f.
func SanitizeContactForm(f ContactForm) ContactForm {
	return ContactForm{
		Name:    Sanitize(f.Name),
		Email:   Sanitize(f.Email),
		Message: Sanitize(f.Message),
	}
}

type contactRules struct {
	Name    string `validate:"required,min=2,max=100"`
	Email   string `validate:"required,looseemail"`
	Message string `validate:"required,min=10,max=2000"`
}

type chatRules struct {
	Message string `validate:"required,min=1,max=500"`
}

var contactMessages = map[string]map[string]string{
	"Name": {
		"required": "Name is required",
		"min":      "Name must be at least 2 characters",
		"max":      "Name must be less than 100 characters",
	},
	"Email": {
		"required":   "Email is required",
		"looseemail": "Please provide a valid email address",
	},
	"Message": {
		"required": "Message is required",
		"min":      "Message must be at least 10 characters",
		"max":      "Message must be less than 2000 characters",
	},
}

var chatMessages = map[string]map[string]string{
	"Message": {
		"required": "Message is required",
		"min":      "Message is required",
		"max":      "Message must be less than 500 characters",
	},
}

// ValidateContactForm checks trimmed lengths and email shape, collecting
// every violation rather than stopping at the first.
func ValidateContactForm(f ContactForm) Result {
	return check(contactRules{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Message: strings.TrimSpace(f.Message),
	}, contactMessages)
}

// ValidateChatMessage checks that a chat message is 1 to 500 characters once trimmed.
func ValidateChatMessage(message string) Result {
	return check(chatRules{Message: strings.TrimSpace(message)}, chatMessages)
}

func check(rules any, messages map[string]map[string]string) Result {
	err := validate.Struct(rules)
	if err == nil {
		return Result{Valid: true, Errors: []string{}}
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Result{Valid: false, Errors: []string{"Invalid input"}}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.StructField()][fe.Tag()]
		if !ok {
			msg = fe.StructField() + " is invalid"
		}
		out = append(out, msg)
	}
	return Result{Valid: false, Errors: out}
}

// ValidSessionID reports whether a client-supplied session id is safe to
// reuse as a storage key.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}
