package assistant

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/sofatutor/portfolio-api/internal/profile"
)

// Category pairs a predicate with the reply pool used when it matches.
type Category struct {
	Name    string
	Pattern *regexp.Regexp
	Pool    []string
}

// Matches reports whether the lower-cased message belongs to the category.
func (c Category) Matches(lower string) bool {
	return c.Pattern.MatchString(lower)
}

// DefaultCategory names the reply used when no category matches.
const DefaultCategory = "default"

// Categories in priority order. The first match wins.
var (
	identityPattern  = regexp.MustCompile(`\b(who are you|what are you|who is this|who am i talking to|your name|about you(rself)?|introduce yourself|are you (a |an )?(bot|robot|human|ai|real))\b`)
	greetingPattern  = regexp.MustCompile(`\b(hi|hello|hey|hiya|howdy|greetings|yo|good (morning|afternoon|evening)|hallo|hola|bonjour|ciao)\b`)
	portfolioPattern = regexp.MustCompile(`\b(projects?|portfolio|works?|worked|built|build|case stud(y|ies)|showcase|apps?|websites?)\b`)
	skillsPattern    = regexp.MustCompile(`\b(skills?|tech|technolog(y|ies)|technical|stack|languages?|frameworks?|tools?|experience|expertise|proficient)\b`)
	contactPattern   = regexp.MustCompile(`\b(contact|e-?mail|hire|hiring|reach|linkedin|github|available|availability|freelance|collaborat(e|ion)|phone|call)\b`)
)

// DefaultCategories builds the ordered category list from a profile's reply pools:
// identity, greeting, portfolio, skills, contact.
func DefaultCategories(p profile.Profile) []Category {
	return []Category{
		{Name: "identity", Pattern: identityPattern, Pool: p.Responses.Identity},
		{Name: "greeting", Pattern: greetingPattern, Pool: p.Responses.Greeting},
		{Name: "portfolio", Pattern: portfolioPattern, Pool: p.Responses.Portfolio},
		{Name: "skills", Pattern: skillsPattern, Pool: p.Responses.Skills},
		{Name: "contact", Pattern: contactPattern, Pool: p.Responses.Contact},
	}
}

// KeywordResponder answers from canned pools. It never fails.
type KeywordResponder struct {
	categories []Category
	fallback   []string
	pick       func(n int) int
}

// NewKeywordResponder creates a responder over categories with fallback as
// the default pool. A nil pick uses a uniform random choice.
func NewKeywordResponder(categories []Category, fallback []string, pick func(n int) int) *KeywordResponder {
	if pick == nil {
		pick = rand.Intn
	}
	if len(fallback) == 0 {
		fallback = []string{"Thanks for your message! Feel free to use the contact form for anything I can't answer."}
	}
	return &KeywordResponder{categories: categories, fallback: fallback, pick: pick}
}

// NewProfileResponder wires the default categories of p.
func NewProfileResponder(p profile.Profile) *KeywordResponder {
	return NewKeywordResponder(DefaultCategories(p), p.Responses.Default, nil)
}

// Name implements Responder.
func (k *KeywordResponder) Name() string { return "keyword" }

// Classify returns the name of the first matching category, or DefaultCategory.
func (k *KeywordResponder) Classify(message string) string {
	name, _ := k.classify(message)
	return name
}

func (k *KeywordResponder) classify(message string) (string, []string) {
	lower := strings.ToLower(message)
	for _, c := range k.categories {
		if len(c.Pool) > 0 && c.Matches(lower) {
			return c.Name, c.Pool
		}
	}
	return DefaultCategory, k.fallback
}

// Respond implements Responder.
func (k *KeywordResponder) Respond(_ context.Context, req Request) (string, error) {
	_, pool := k.classify(req.Message)
	return pool[k.pick(len(pool))], nil
}
