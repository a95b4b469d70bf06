package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

// LoadDotEnv reads a .env file. It does not touch the OS environment; the
// values are meant to be layered into resolver variables.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, config.WrapFatal("env", "cannot open env file", err)
	}
	defer file.Close()

	vars, err := ParseDotEnv(file)
	if err != nil {
		return nil, config.WrapFatal("env", path, err)
	}
	return vars, nil
}

// ParseDotEnv reads KEY=value lines. It accepts an optional "export "
// prefix, double or single quoted values (\n and \" are unescaped inside
// double quotes), " #" comments after unquoted values, blank lines and full
// line comments. A non-blank line with no "=" or an empty key is an error.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("line %d: expected KEY=value", lineNo)
		}
		result[key] = dotEnvValue(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return result, nil
}

func dotEnvValue(value string) string {
	if len(value) >= 2 {
		switch {
		case value[0] == '"' && value[len(value)-1] == '"':
			return strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\\`, `\`).Replace(value[1 : len(value)-1])
		case value[0] == '\'' && value[len(value)-1] == '\'':
			return value[1 : len(value)-1]
		}
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}
