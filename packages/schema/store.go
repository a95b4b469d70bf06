package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/xeipuuv/gojsonschema"
)

// Store resolves schema references.
type Store interface {
	Schema(ref string) (*gojsonschema.Schema, error)
}

// DirStore loads schemas from a file system and caches the compiled result.
// It is safe for concurrent use.
type DirStore struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewDirStore serves schemas from the directory dir.
func NewDirStore(dir string) *DirStore {
	return NewFSStore(os.DirFS(dir))
}

func NewFSStore(fsys fs.FS) *DirStore {
	return &DirStore{fsys: fsys, cache: make(map[string]*gojsonschema.Schema)}
}

// Schema returns the compiled schema for ref. The ".json" extension may be
// omitted. Unknown, unreadable or invalid schemas are a *config.FatalError.
func (s *DirStore) Schema(ref string) (*gojsonschema.Schema, error) {
	name := path.Clean(strings.TrimPrefix(strings.TrimSpace(ref), "./"))
	if !fs.ValidPath(name) || name == "." {
		return nil, config.Fatalf("schema", "invalid schema reference %q", ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if compiled, ok := s.cache[name]; ok {
		return compiled, nil
	}

	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) && path.Ext(name) == "" {
		data, err = fs.ReadFile(s.fsys, name+".json")
	}
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %w", ErrUnknownSchema, err)
	}
	if err != nil {
		return nil, config.WrapFatal("schema", "cannot read schema "+ref, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, config.WrapFatal("schema", "invalid schema "+ref, err)
	}
	s.cache[name] = compiled
	return compiled, nil
}
