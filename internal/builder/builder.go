package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/proc"
	"github.com/vk/genesisforge/internal/stamp"
)

// CommandBuilder runs a build command in the source root and picks up the
// executable it leaves at ArtifactPath.
type CommandBuilder struct {
	Command      []string
	SourceRoot   string
	ArtifactPath string
	Env          map[string]string
	// Exclude lists paths relative to SourceRoot that are not source:
	// build output directories and the generated spec files.
	Exclude []string
}

var _ Builder = (*CommandBuilder)(nil)

func op(pass int) string {
	if pass == 2 {
		return "build.second"
	}
	return "build.first"
}

// Fingerprint stamps the source tree minus the excluded paths.
func (b *CommandBuilder) Fingerprint(ctx context.Context) (stamp.Stamp, error) {
	fp, err := stamp.Tree(b.SourceRoot, b.Exclude)
	if err != nil {
		return stamp.None, failure.Wrap(failure.KindBuild, "build.fingerprint", err, "cannot fingerprint source tree")
	}
	ctxlog.FromContext(ctx).Debug("Source tree fingerprinted.", "root", b.SourceRoot, "fingerprint", fp.Short())
	return fp, nil
}

// Build runs the build command once.
func (b *CommandBuilder) Build(ctx context.Context, pass int) (*Artifact, error) {
	ctx = ctxlog.With(ctx, "pass", pass)
	logger := ctxlog.FromContext(ctx)

	if len(b.Command) == 0 {
		return nil, failure.New(failure.KindBuild, op(pass), "no build command configured")
	}

	fingerprint, err := b.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("🔨 Building node executable.", "command", strings.Join(b.Command, " "), "dir", b.SourceRoot)
	_, err = proc.Run(ctx, proc.Command{
		Path: b.Command[0],
		Args: b.Command[1:],
		Dir:  b.SourceRoot,
		Env:  b.Env,
	})
	if err != nil {
		return nil, failure.Wrap(failure.KindBuild, op(pass), err, "build command failed")
	}

	info, err := os.Stat(b.ArtifactPath)
	if err != nil {
		return nil, failure.WithPath(
			failure.Wrap(failure.KindBuild, op(pass), err, "build finished but produced no executable"),
			b.ArtifactPath)
	}
	if !info.Mode().IsRegular() {
		return nil, failure.WithPath(
			failure.New(failure.KindBuild, op(pass), "build output is not a regular file"),
			b.ArtifactPath)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return nil, failure.WithPath(
			failure.New(failure.KindBuild, op(pass), "build output is not executable"),
			b.ArtifactPath)
	}

	st, err := stamp.File(b.ArtifactPath)
	if err != nil {
		return nil, failure.WithPath(
			failure.Wrap(failure.KindBuild, op(pass), err, "cannot stamp executable"),
			b.ArtifactPath)
	}

	path, err := filepath.Abs(b.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("resolving artifact path: %w", err)
	}

	logger.Info("✅ Executable built.", "artifact", path, "stamp", st.Short(), "size", info.Size())
	return &Artifact{
		Path:              path,
		Pass:              pass,
		Stamp:             st,
		SourceFingerprint: fingerprint,
	}, nil
}
