package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/fixture"
	"github.com/google/uuid"
)

type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
	gen   *fixture.Generator
}

// NewRegistry returns the default functions backed by gen. A nil gen gets a
// fresh generator.
func NewRegistry(gen *fixture.Generator) *Registry {
	if gen == nil {
		gen = fixture.NewGenerator()
	}
	r := &Registry{
		funcs: make(map[string]Func),
		gen:   gen,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["date"] = funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = r.funcRandom
	r.funcs["randomString"] = r.funcRandomString(16)
	r.funcs["randomAlphanumeric"] = r.funcRandomString(8)
	r.funcs["randomEmail"] = r.funcRandomEmail
	r.funcs["email"] = r.funcRandomEmail
	r.funcs["fixture"] = r.funcFixture
	r.funcs["base64"] = unary(func(s string) (any, error) {
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	})
	r.funcs["base64Decode"] = unary(func(s string) (any, error) {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("base64Decode: %w", err)
		}
		return string(decoded), nil
	})
	r.funcs["md5"] = unary(func(s string) (any, error) {
		hash := md5.Sum([]byte(s))
		return hex.EncodeToString(hash[:]), nil
	})
	r.funcs["sha256"] = unary(func(s string) (any, error) {
		hash := sha256.Sum256([]byte(s))
		return hex.EncodeToString(hash[:]), nil
	})
	r.funcs["urlEncode"] = unary(func(s string) (any, error) {
		return url.QueryEscape(s), nil
	})
	r.funcs["urlDecode"] = unary(func(s string) (any, error) {
		decoded, err := url.QueryUnescape(s)
		if err != nil {
			return nil, fmt.Errorf("urlDecode: %w", err)
		}
		return decoded, nil
	})
	r.funcs["json"] = unary(func(s string) (any, error) { return s, nil })
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names lists registered functions in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr has the shape name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(strings.TrimSpace(expr))
}

// Call evaluates expr. ok is false when expr is not a call to a registered
// function; err reports a registered function rejecting its arguments.
func (r *Registry) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false, nil
	}

	name := matches[1]
	argsStr := matches[2]

	fn, found := r.funcs[name]
	if !found {
		return nil, false, nil
	}

	var args []string
	if argsStr != "" {
		args = parseArgs(argsStr)
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", name, err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func unary(fn func(string) (any, error)) Func {
	return func(args []string) (any, error) {
		if len(args) < 1 {
			return "", nil
		}
		return fn(args[0])
	}
}

func intArg(args []string, i int, name string, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s argument %q is not a valid integer", name, args[i])
	}
	return v, nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

func (r *Registry) funcRandom(args []string) (any, error) {
	min, err := intArg(args, 0, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, "max", 100)
	if err != nil {
		return nil, err
	}
	return r.gen.Int(min, max), nil
}

func (r *Registry) funcRandomString(defaultLength int) Func {
	return func(args []string) (any, error) {
		n, err := intArg(args, 0, "length", defaultLength)
		if err != nil {
			return nil, err
		}
		return r.gen.String(n), nil
	}
}

func (r *Registry) funcRandomEmail(_ []string) (any, error) {
	return r.gen.Email(), nil
}

// funcFixture generates a fixture of kind args[0] and returns either the
// named field args[1] or the whole fixture encoded as JSON.
func (r *Registry) funcFixture(args []string) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing fixture kind")
	}
	kind, err := fixture.ParseKind(args[0])
	if err != nil {
		return nil, err
	}
	f, err := r.gen.Generate(kind)
	if err != nil {
		return nil, err
	}
	if len(args) >= 2 {
		v, ok := f.Get(args[1])
		if !ok {
			return nil, fmt.Errorf("%s fixture has no field %q", kind, args[1])
		}
		return v, nil
	}
	if kind == fixture.KindEmail || kind == fixture.KindText || kind == fixture.KindInt {
		return f.Value(), nil
	}
	data, err := f.JSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
