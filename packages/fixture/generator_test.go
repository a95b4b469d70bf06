package fixture

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ConcurrentTokensAreUnique(t *testing.T) {
	g := NewGenerator()
	const callers, perCaller = 8, 1250

	tokens := make(chan string, callers*perCaller)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				f, err := g.Generate(KindUser)
				if !assert.NoError(t, err) {
					return
				}
				tokens <- f.Token
			}
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]struct{}, callers*perCaller)
	for tok := range tokens {
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func TestGenerate_Kinds(t *testing.T) {
	g := NewGenerator(WithSeed(1))

	user, err := g.Generate(KindUser)
	require.NoError(t, err)
	assert.Len(t, user.Token, 32)
	assert.Contains(t, user.String("username"), user.Token)
	assert.Contains(t, user.String("name"), " ")

	post, err := g.Generate(KindPost)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.String("title"), "Test Post "))
	assert.GreaterOrEqual(t, post.Int("userId"), 1)
	assert.LessOrEqual(t, post.Int("userId"), 10)

	comment, err := g.Generate(KindComment)
	require.NoError(t, err)
	assert.NotEmpty(t, comment.String("body"))
	assert.Contains(t, comment.Fields(), "postId")

	text, err := g.Generate(KindText)
	require.NoError(t, err)
	assert.Len(t, text.Value(), 10)

	n, err := g.Generate(KindInt)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n.Value(), 1)
	assert.LessOrEqual(t, n.Value(), 100)
}

func TestGenerate_EmailsAreValid(t *testing.T) {
	g := NewGenerator(WithDomains("example.org"))

	for i := 0; i < 100; i++ {
		for _, kind := range []Kind{KindUser, KindComment, KindEmail} {
			f, err := g.Generate(kind)
			require.NoError(t, err)
			email := f.String("email")
			assert.Equal(t, 1, strings.Count(email, "@"), email)
			assert.True(t, strings.HasSuffix(email, "@example.org"), email)
		}
	}

	email := NewGenerator().Email()
	domain := email[strings.Index(email, "@")+1:]
	assert.Contains(t, AllowedDomains, domain)
}

func TestGenerate_UnknownKindIsFatal(t *testing.T) {
	_, err := NewGenerator().Generate(Kind("invoice"))

	var fatal *config.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "fixture", fatal.Component)
}

func TestFixture_IsAValue(t *testing.T) {
	f, err := NewGenerator().Generate(KindPost)
	require.NoError(t, err)

	fields := f.Fields()
	fields["title"] = "changed"
	assert.NotEqual(t, "changed", f.String("title"))

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, f.String("title"), decoded["title"])
}

func TestGenerator_IntRangeAndSeed(t *testing.T) {
	a := NewGenerator(WithSeed(42), WithIntRange(10, 5))
	b := NewGenerator(WithSeed(42), WithIntRange(5, 10))

	for i := 0; i < 20; i++ {
		x, y := a.Int(5, 10), b.Int(5, 10)
		assert.Equal(t, x, y)
		assert.GreaterOrEqual(t, x, 5)
		assert.LessOrEqual(t, x, 10)
	}
	assert.Equal(t, a.String(12), b.String(12))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" User ")
	require.NoError(t, err)
	assert.Equal(t, KindUser, k)

	_, err = ParseKind("")
	assert.Error(t, err)
}
