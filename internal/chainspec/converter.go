package chainspec

import (
	"context"
	"os"

	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/proc"
	"github.com/vk/genesisforge/internal/stamp"
)

// Converter turns persisted plain documents into raw ones.
type Converter struct {
	Env                    map[string]string
	Dir                    string
	DisableDefaultBootnode bool
}

// Convert runs the executable over plain.Path with raw output requested.
// The conversion executes the runtime's genesis construction, so the
// executable must be the very build that produced plain, and plain must be
// unmodified on disk; anything else is a failure.KindConversion error.
func (c *Converter) Convert(ctx context.Context, art *builder.Artifact, plain *Document) (*Document, error) {
	const op = "spec.raw"
	logger := ctxlog.FromContext(ctx)

	if plain == nil || plain.Kind != Plain {
		return nil, failure.New(failure.KindSpecGeneration, op, "conversion requires a plain document")
	}
	if plain.Path == "" {
		return nil, failure.New(failure.KindSpecGeneration, op, "plain document has not been persisted")
	}
	if err := checkExecutable(op, art); err != nil {
		return nil, err
	}
	if plain.Producer != art.Stamp {
		return nil, failure.WithPath(
			failure.New(failure.KindConversion, op,
				"plain spec was produced by executable %s but conversion would run %s", plain.Producer.Short(), art.Stamp.Short()),
			plain.Path)
	}
	onDisk, err := os.ReadFile(plain.Path)
	if err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindSpecGeneration, op, err, "cannot read plain spec"), plain.Path)
	}
	if got := stamp.Bytes(onDisk); got != plain.Digest {
		return nil, failure.WithPath(
			failure.New(failure.KindConversion, op, "plain spec changed on disk since generation (expected %s, found %s)",
				plain.Digest.Short(), got.Short()),
			plain.Path)
	}

	args := []string{buildSpecCmd, chainFlag, plain.Path, rawFlag}
	if c.DisableDefaultBootnode {
		args = append(args, disableDefaultBootnodes)
	}

	logger.Info("🧬 Converting plain chain spec to raw.", "plain", plain.Path, "executable", art.Path)
	res, err := proc.Run(ctx, proc.Command{
		Path:          art.Path,
		Args:          args,
		Dir:           c.Dir,
		Env:           c.Env,
		CaptureStdout: true,
	})
	if err != nil {
		return nil, failure.Wrap(failure.KindSpecGeneration, op, err, "executable failed to convert %s", plain.Path)
	}

	spec, err := ParseRaw(res.Stdout)
	if err != nil {
		return nil, failure.Wrap(failure.KindSpecGeneration, op, err, "executable emitted an unusable raw spec")
	}

	doc := &Document{
		Kind:     Raw,
		Data:     res.Stdout,
		Producer: art.Stamp,
		Digest:   stamp.Bytes(res.Stdout),
	}
	logger.Info("✅ Raw chain spec generated.", "chain", spec.Name, "storage_entries", len(spec.Genesis.Raw.Top), "digest", doc.Digest.Short())
	return doc, nil
}
