package chainspec

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/proc"
	"github.com/vk/genesisforge/internal/stamp"
)

const (
	buildSpecCmd            = "build-spec"
	chainFlag               = "--chain"
	rawFlag                 = "--raw"
	disableDefaultBootnodes = "--disable-default-bootnode"
)

// Generator emits plain spec documents.
type Generator struct {
	// Env is added to the executable's environment.
	Env map[string]string
	// Dir is the working directory for the executable; relative file
	// profiles are resolved against it.
	Dir string
}

// Generate runs the executable in build-spec mode for profile and returns
// the plain document it printed. It never builds the executable itself.
func (g *Generator) Generate(ctx context.Context, art *builder.Artifact, profile Profile, disableBootnodes bool) (*Document, error) {
	const op = "spec.plain"
	logger := ctxlog.FromContext(ctx).With("profile", string(profile))

	if err := profile.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindSpecGeneration, op, err, "invalid chain profile")
	}
	if !profile.IsPreset() {
		path := string(profile)
		if !filepath.IsAbs(path) && g.Dir != "" {
			path = filepath.Join(g.Dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, failure.WithPath(
				failure.Wrap(failure.KindSpecGeneration, op, err, "chain profile %q is neither a preset nor a readable spec file", profile),
				path)
		}
	}
	if err := checkExecutable(op, art); err != nil {
		return nil, err
	}

	args := []string{buildSpecCmd, chainFlag, string(profile)}
	if disableBootnodes {
		args = append(args, disableDefaultBootnodes)
	}

	logger.Info("📜 Generating plain chain spec.", "executable", art.Path)
	res, err := proc.Run(ctx, proc.Command{
		Path:          art.Path,
		Args:          args,
		Dir:           g.Dir,
		Env:           g.Env,
		CaptureStdout: true,
	})
	if err != nil {
		return nil, failure.Wrap(failure.KindSpecGeneration, op, err, "executable failed to emit a spec for profile %q", profile)
	}

	spec, err := ParsePlain(res.Stdout)
	if err != nil {
		return nil, failure.Wrap(failure.KindSpecGeneration, op, err, "executable emitted an unusable plain spec")
	}

	doc := &Document{
		Kind:     Plain,
		Data:     res.Stdout,
		Producer: art.Stamp,
		Digest:   stamp.Bytes(res.Stdout),
	}
	logger.Info("✅ Plain chain spec generated.",
		"chain", spec.Name,
		"id", spec.ID,
		"boot_nodes", len(spec.BootNodes),
		"runtime_sections", len(spec.Genesis.Runtime),
		"digest", doc.Digest.Short(),
	)
	return doc, nil
}
