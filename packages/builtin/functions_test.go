package builtin

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/fixture"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry(fixture.NewGenerator(fixture.WithSeed(7)))

	tests := []struct {
		expr  string
		check func(t *testing.T, v any)
	}{
		{"uuid()", func(t *testing.T, v any) {
			_, err := uuid.Parse(v.(string))
			assert.NoError(t, err)
		}},
		{"random(5, 6)", func(t *testing.T, v any) {
			assert.Contains(t, []int{5, 6}, v)
		}},
		{"randomString(12)", func(t *testing.T, v any) {
			assert.Len(t, v, 12)
		}},
		{"randomEmail()", func(t *testing.T, v any) {
			assert.Equal(t, 1, strings.Count(v.(string), "@"))
		}},
		{"base64('user:passwd')", func(t *testing.T, v any) {
			assert.Equal(t, "dXNlcjpwYXNzd2Q=", v)
		}},
		{"base64Decode(dXNlcjpwYXNzd2Q=)", func(t *testing.T, v any) {
			assert.Equal(t, "user:passwd", v)
		}},
		{"md5(hello)", func(t *testing.T, v any) {
			assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", v)
		}},
		{`urlEncode("a b&c")`, func(t *testing.T, v any) {
			assert.Equal(t, "a+b%26c", v)
		}},
		{"fixture(user, email)", func(t *testing.T, v any) {
			assert.Contains(t, v.(string), "@")
		}},
		{"fixture(post)", func(t *testing.T, v any) {
			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(v.(string)), &decoded))
			assert.Contains(t, decoded, "title")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			require.True(t, ok)
			tt.check(t, v)
		})
	}
}

func TestRegistry_CallErrors(t *testing.T) {
	r := NewRegistry(nil)

	_, ok, err := r.Call("notAFunction()")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = r.Call("userId")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = r.Call("random(a, 10)")
	assert.True(t, ok)
	assert.ErrorContains(t, err, "not a valid integer")

	_, _, err = r.Call("fixture(invoice)")
	var fatal *config.FatalError
	assert.ErrorAs(t, err, &fatal)

	_, _, err = r.Call("fixture(user, phone)")
	assert.ErrorContains(t, err, `no field "phone"`)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("answer", func(_ []string) (any, error) { return 42, nil })

	v, ok, err := r.Call("answer()")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Contains(t, r.Names(), "answer")
	assert.True(t, IsCall(" answer() "))
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a, b", "c"}, parseArgs(`"a, b", c`))
	assert.Equal(t, []string{"1", "2"}, parseArgs("1, 2"))
	assert.Nil(t, parseArgs(""))
}
