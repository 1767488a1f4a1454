package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"script tag", "<script>hi</script>", "scripthi/script"},
		{"trims", "  hello  ", "hello"},
		{"trims after stripping", " <b> ", "b"},
		{"plain text untouched", "Hi, I'm Jo & co.", "Hi, I'm Jo & co."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<")
			assert.NotContains(t, got, ">")
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	got := Sanitize(strings.Repeat("a", 2500))
	assert.Len(t, got, MaxSanitizedLength)

	multi := Sanitize(strings.Repeat("é", 2100))
	assert.Equal(t, MaxSanitizedLength, len([]rune(multi)))
}

func TestValidateContactForm(t *testing.T) {
	valid := ContactForm{Name: "Jo Doe", Email: "jo@example.com", Message: "Hello there, nice site!"}

	tests := []struct {
		name   string
		form   ContactForm
		errors []string
	}{
		{"valid", valid, nil},
		{"short name and message reports both", ContactForm{Name: "J", Email: "jo@example.com", Message: "short"}, []string{
			"Name must be at least 2 characters",
			"Message must be at least 10 characters",
		}},
		{"bad email and short message", ContactForm{Name: "Jo", Email: "bad", Message: "short"}, []string{
			"Please provide a valid email address",
			"Message must be at least 10 characters",
		}},
		{"all empty", ContactForm{}, []string{
			"Name is required",
			"Email is required",
			"Message is required",
		}},
		{"whitespace only name", ContactForm{Name: "   ", Email: "jo@example.com", Message: valid.Message}, []string{
			"Name is required",
		}},
		{"name too long", ContactForm{Name: strings.Repeat("n", 101), Email: "jo@example.com", Message: valid.Message}, []string{
			"Name must be less than 100 characters",
		}},
		{"name at upper bound", ContactForm{Name: strings.Repeat("n", 100), Email: "jo@example.com", Message: valid.Message}, nil},
		{"message too long", ContactForm{Name: "Jo", Email: "jo@example.com", Message: strings.Repeat("m", 2001)}, []string{
			"Message must be less than 2000 characters",
		}},
		{"email with spaces", ContactForm{Name: "Jo", Email: "jo @example.com", Message: valid.Message}, []string{
			"Please provide a valid email address",
		}},
		{"email without tld", ContactForm{Name: "Jo", Email: "jo@example", Message: valid.Message}, []string{
			"Please provide a valid email address",
		}},
		{"padded fields are trimmed", ContactForm{Name: "  Jo  ", Email: " jo@example.com ", Message: "  0123456789  "}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateContactForm(tt.form)
			if tt.errors == nil {
				assert.True(t, res.Valid)
				assert.Empty(t, res.Errors)
				assert.NoError(t, res.Err())
				return
			}
			assert.False(t, res.Valid)
			assert.Equal(t, tt.errors, res.Errors)
		})
	}
}

func TestValidateChatMessage(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		msg   string
	}{
		{"hi", true, ""},
		{"x", true, ""},
		{"", false, "Message is required"},
		{"   ", false, "Message is required"},
		{strings.Repeat("a", 500), true, ""},
		{strings.Repeat("a", 501), false, "Message must be less than 500 characters"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("len=%d", len(tt.in)), func(t *testing.T) {
			res := ValidateChatMessage(tt.in)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, []string{tt.msg}, res.Errors)
			}
		})
	}
}

func TestResultErr(t *testing.T) {
	res := ValidateChatMessage("")
	err := res.Err()
	require.Error(t, err)

	wrapped := fmt.Errorf("chat: %w", err)
	ve, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, []string{"Message is required"}, ve.Errors)
	assert.Contains(t, err.Error(), "Message is required")

	_, ok = AsError(errors.New("other"))
	assert.False(t, ok)
}

func TestSanitizeContactForm(t *testing.T) {
	got := SanitizeContactForm(ContactForm{Name: " <Jo> ", Email: "jo@example.com ", Message: "<p>hello world</p>"})
	assert.Equal(t, ContactForm{Name: "Jo", Email: "jo@example.com", Message: "phello world/p"}, got)
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID("session-1700000000000-abc123xyz"))
	assert.True(t, ValidSessionID("abc_DEF-1"))
	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("has space"))
	assert.False(t, ValidSessionID("semi;colon"))
	assert.False(t, ValidSessionID(strings.Repeat("a", 101)))
}
