package typereg

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/genesisforge/internal/failure"
)

const opLoad = "typereg.load"

// ModulePlaceholder is replaced by the module name in fragment patterns.
const ModulePlaceholder = "{module}"

// Source loads the fragment of a module.
//
// Implementations must be safe for concurrent use and return
// failure.KindFragmentMiss or failure.KindFragmentParse errors.
type Source interface {
	Load(ctx context.Context, module string) (*Fragment, error)
}

// DirSource reads fragments from files below Root.
type DirSource struct {
	Root string
	// Pattern is the slash-separated path of a fragment relative to Root,
	// containing ModulePlaceholder, e.g. "pallets/{module}/types.json".
	Pattern string
}

// Path returns the file the fragment of module is read from.
func (s *DirSource) Path(module string) string {
	rel := strings.ReplaceAll(s.Pattern, ModulePlaceholder, module)
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Load implements Source.
func (s *DirSource) Load(ctx context.Context, module string) (*Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(module)
	data, err := os.ReadFile(path)
	if err != nil {
		msg := "cannot read fragment of module %q"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "fragment of module %q is missing"
		}
		return nil, failure.WithPath(failure.Wrap(failure.KindFragmentMiss, opLoad, err, msg, module), path)
	}
	frag, err := ParseFragment(module, data)
	if err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindFragmentParse, opLoad, err, "malformed fragment of module %q", module), path)
	}
	frag.Path = path
	return frag, nil
}

// MemorySource serves fragment documents held in memory, keyed by module.
type MemorySource map[string][]byte

// Load implements Source.
func (m MemorySource) Load(ctx context.Context, module string) (*Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m[module]
	if !ok {
		return nil, failure.New(failure.KindFragmentMiss, opLoad, "fragment of module %q is missing", module)
	}
	frag, err := ParseFragment(module, data)
	if err != nil {
		return nil, failure.Wrap(failure.KindFragmentParse, opLoad, err, "malformed fragment of module %q", module)
	}
	return frag, nil
}
