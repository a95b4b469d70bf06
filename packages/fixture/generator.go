package fixture

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
	words      = []string{"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit", "sed", "tempor"}
)

// AllowedDomains are the email domains generated addresses use by default.
var AllowedDomains = []string{"example.com", "test.com", "demo.com", "sample.com"}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces fixtures. The zero value is not usable; call
// NewGenerator.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand

	domains    []string
	textLength int
	intMin     int
	intMax     int
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes field choices reproducible. Tokens stay random.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rnd = rand.New(rand.NewSource(seed)) }
}

// WithDomains replaces the allowed email domains.
func WithDomains(domains ...string) Option {
	return func(g *Generator) {
		if len(domains) > 0 {
			g.domains = append([]string(nil), domains...)
		}
	}
}

func WithTextLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.textLength = n
		}
	}
}

// WithIntRange sets the inclusive range for KindInt fixtures.
func WithIntRange(min, max int) Option {
	return func(g *Generator) {
		if min > max {
			min, max = max, min
		}
		g.intMin, g.intMax = min, max
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		domains:    AllowedDomains,
		textLength: 10,
		intMin:     1,
		intMax:     100,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds one fixture of kind. Only an unknown kind fails.
func (g *Generator) Generate(kind Kind) (Fixture, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Fixture{}, err
	}

	token := newToken()
	f := Fixture{Kind: kind, Token: token}

	switch kind {
	case KindUser:
		first, last, domain := g.pick(firstNames), g.pick(lastNames), g.pick(g.domains)
		f.fields = map[string]any{
			"name":     first + " " + last,
			"username": strings.ToLower(first) + "_" + token,
			"email":    strings.ToLower(first+"."+last) + "." + token + "@" + domain,
		}
	case KindPost:
		f.fields = map[string]any{
			"title":  "Test Post " + token,
			"body":   "This is a test post body with random content: " + g.sentence(8),
			"userId": g.Int(1, 10),
		}
	case KindComment:
		first, domain := g.pick(firstNames), g.pick(g.domains)
		f.fields = map[string]any{
			"name":   g.sentence(3),
			"email":  strings.ToLower(first) + "." + token + "@" + domain,
			"body":   g.sentence(12),
			"postId": g.Int(1, 100),
		}
	case KindEmail:
		f.fields = map[string]any{"email": "user." + token + "@" + g.pick(g.domains)}
	case KindText:
		f.fields = map[string]any{"value": g.String(g.textLength)}
	case KindInt:
		f.fields = map[string]any{"value": g.Int(g.intMin, g.intMax)}
	}
	return f, nil
}

// Email returns a unique address in one of the allowed domains.
func (g *Generator) Email() string {
	return "user." + newToken() + "@" + g.pick(g.domains)
}

// String returns n random alphanumeric characters.
func (g *Generator) String(n int) string {
	if n <= 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[g.rnd.Intn(len(alphanumeric))]
	}
	return string(b)
}

// Int returns a value in [min, max].
func (g *Generator) Int(min, max int) int {
	if min > max {
		min, max = max, min
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(max-min+1) + min
}

// Token returns a fresh identity token.
func (g *Generator) Token() string {
	return newToken()
}

func (g *Generator) pick(options []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return options[g.rnd.Intn(len(options))]
}

func (g *Generator) sentence(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[g.rnd.Intn(len(words))]
	}
	return strings.Join(parts, " ")
}

// newToken is a dashless version 4 UUID.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
