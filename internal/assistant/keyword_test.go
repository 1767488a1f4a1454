package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofatutor/portfolio-api/internal/profile"
)

func testProfile(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.Load("")
	require.NoError(t, err)
	return p
}

func TestKeywordResponder_Classify(t *testing.T) {
	k := NewProfileResponder(testProfile(t))

	tests := []struct {
		message string
		want    string
	}{
		{"who are you", "identity"},
		{"Who are you? Hello!", "identity"},
		{"hello", "greeting"},
		{"Hey there", "greeting"},
		{"Good morning!", "greeting"},
		{"hello, how can I contact you?", "greeting"},
		{"Show me your projects", "portfolio"},
		{"what have you built with your skills", "portfolio"},
		{"What is your tech stack?", "skills"},
		{"Which languages do you use", "skills"},
		{"How can I hire you?", "contact"},
		{"what's your email", "contact"},
		{"tell me a joke", DefaultCategory},
		{"this is nothing", DefaultCategory},
		{"", DefaultCategory},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, k.Classify(tt.message))
		})
	}
}

func TestKeywordResponder_RespondDrawsFromCategoryPool(t *testing.T) {
	p := testProfile(t)
	k := NewProfileResponder(p)

	for i := 0; i < 20; i++ {
		got, err := k.Respond(context.Background(), Request{Message: "hello"})
		require.NoError(t, err)
		assert.Contains(t, p.Responses.Greeting, got)

		got, err = k.Respond(context.Background(), Request{Message: "who are you"})
		require.NoError(t, err)
		assert.Contains(t, p.Responses.Identity, got)

		got, err = k.Respond(context.Background(), Request{Message: "asdf"})
		require.NoError(t, err)
		assert.Contains(t, p.Responses.Default, got)
	}
}

func TestKeywordResponder_UsesPicker(t *testing.T) {
	p := testProfile(t)
	var gotN int
	k := NewKeywordResponder(DefaultCategories(p), p.Responses.Default, func(n int) int {
		gotN = n
		return n - 1
	})

	got, err := k.Respond(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, len(p.Responses.Greeting), gotN)
	assert.Equal(t, p.Responses.Greeting[len(p.Responses.Greeting)-1], got)
}

func TestKeywordResponder_SkipsEmptyPoolsAndHasFallback(t *testing.T) {
	cats := []Category{{Name: "greeting", Pattern: greetingPattern}}
	k := NewKeywordResponder(cats, nil, func(int) int { return 0 })

	assert.Equal(t, DefaultCategory, k.Classify("hello"))
	got, err := k.Respond(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, "keyword", k.Name())
}
