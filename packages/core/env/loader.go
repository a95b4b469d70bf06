package env

import (
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

// Environment is a named set of variables, such as "staging" or "prod".
type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment selects envName from envs. An empty name selects nothing;
// a name that envs does not define is a *config.FatalError.
func LoadEnvironment(envName string, envs map[string]map[string]any) (*Environment, error) {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}
	if envName == "" {
		return env, nil
	}

	vars, ok := envs[envName]
	if !ok {
		names := make([]string, 0, len(envs))
		for n := range envs {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, config.Fatalf("env", "unknown environment %q (defined: %s)", envName, strings.Join(names, ", "))
	}
	for k, v := range vars {
		env.Variables[k] = v
	}
	return env, nil
}

// MergeVariables combines sources; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// StringVariables converts string maps such as a parsed .env file.
func StringVariables(src map[string]string) map[string]any {
	result := make(map[string]any, len(src))
	for k, v := range src {
		result[k] = v
	}
	return result
}

// LoadSystemEnv returns OS environment variables whose names start with
// prefix, keyed by the remainder of the name.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
