package chainspec

import (
	"errors"
	"io/fs"
	"os"

	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/stamp"
)

// checkExecutable enforces the ordering precondition (the executable has
// been built) and that its bytes still match the artifact stamp.
func checkExecutable(op string, art *builder.Artifact) error {
	if art == nil || art.Path == "" {
		return failure.New(failure.KindSpecGeneration, op, "executable has not been built; run the build stage first")
	}
	info, err := os.Stat(art.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure.WithPath(
				failure.Wrap(failure.KindSpecGeneration, op, err, "executable has not been built; run the build stage first"),
				art.Path)
		}
		return failure.WithPath(failure.Wrap(failure.KindSpecGeneration, op, err, "cannot access executable"), art.Path)
	}
	if !info.Mode().IsRegular() {
		return failure.WithPath(failure.New(failure.KindSpecGeneration, op, "executable is not a regular file"), art.Path)
	}

	current, err := stamp.File(art.Path)
	if err != nil {
		return failure.WithPath(failure.Wrap(failure.KindSpecGeneration, op, err, "cannot stamp executable"), art.Path)
	}
	if current != art.Stamp {
		return failure.WithPath(
			failure.New(failure.KindConversion, op,
				"executable changed since it was built (built %s, found %s)", art.Stamp.Short(), current.Short()),
			art.Path)
	}
	return nil
}
