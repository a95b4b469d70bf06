package suite

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/env"
)

// Extensions lists the file name suffixes Discover treats as suites.
var Extensions = []string{".suite.yaml", ".suite.yml"}

// Suite is a decoded suite file. Relative data, schema and upload paths are
// taken from Dir.
type Suite struct {
	File
	Path string
	Dir  string
}

// Load reads and decodes the suite at path. Unknown keys are rejected.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot read "+path, err)
	}
	s, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	s.Path = path
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	return s, nil
}

// Parse decodes a suite document whose relative paths resolve against dir.
func Parse(data []byte, dir string) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	s := &Suite{Dir: dir}
	if err := dec.Decode(&s.File); err != nil && !errors.Is(err, io.EOF) {
		return nil, config.WrapFatal("suite", "cannot parse suite", err)
	}
	return s, nil
}

// Discover returns the suite files under path in lexical order. A file path
// is returned as is.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot open "+path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isSuiteFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot walk "+path, err)
	}
	sort.Strings(files)
	return files, nil
}

func isSuiteFile(path string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Variables returns the suite variables overlaid with those of the named
// environment. An empty name selects no environment.
func (s *Suite) Variables(envName string) (map[string]any, error) {
	environment, err := env.LoadEnvironment(envName, s.Environments)
	if err != nil {
		return nil, err
	}
	return env.MergeVariables(s.File.Variables, environment.Variables), nil
}
