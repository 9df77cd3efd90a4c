package scripted

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/schema"
)

// Load compiles handler definition files.
func Load(paths ...string) ([]*Handler, error) {
	handlers := make([]*Handler, 0, len(paths))
	for _, p := range paths {
		def, err := schema.LoadFile(p)
		if err != nil {
			return nil, err
		}
		h, err := New(def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// LoadDir compiles every .yaml and .yml file directly inside dir.
func LoadDir(dir string) ([]*Handler, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read handler directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return Load(paths...)
}

// NewProvider loads a directory of definitions into an in-process provider.
func NewProvider(dir string) (*memory.Provider, error) {
	handlers, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	p := memory.NewProvider()
	for _, h := range handlers {
		p.Add(h)
	}
	return p, nil
}
