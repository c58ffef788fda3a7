package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/genesisforge/internal/bootstrap"
	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/chainspec"
	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/fsutil"
	"github.com/vk/genesisforge/internal/release"
	"github.com/vk/genesisforge/internal/typereg"
)

// Run executes the configured command while holding the workspace lock.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	unlock, err := fsutil.AcquireLock(a.pipeline.LockFile, a.runID)
	if err != nil {
		if errors.Is(err, fsutil.ErrLocked) {
			return fmt.Errorf("another genesisforge run is in progress: %w", err)
		}
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			a.logger.Error("Failed to release workspace lock.", "path", a.pipeline.LockFile, "error", uerr)
			if err == nil {
				err = uerr
			}
		}
	}()

	switch a.config.Command {
	case CommandBootstrap:
		res, err := a.runBootstrap(ctx)
		if err != nil {
			return err
		}
		return a.stageRelease(ctx, res, false)
	case CommandTypes:
		_, err := a.runTypes(ctx)
		return err
	case CommandAll:
		res, err := a.runBootstrap(ctx)
		if err != nil {
			return err
		}
		if _, err := a.runTypes(ctx); err != nil {
			return err
		}
		return a.stageRelease(ctx, res, true)
	default:
		return failure.New(failure.KindConfig, "app.run", "unknown command %q", a.config.Command)
	}
}

func (a *App) runBootstrap(ctx context.Context) (*bootstrap.Result, error) {
	p := a.pipeline
	if p.Chain == nil || p.Build == nil || p.Source == nil {
		return nil, failure.New(failure.KindConfig, "bootstrap", "configuration needs 'source', 'build' and 'chain' blocks to bootstrap")
	}

	b := &builder.CommandBuilder{
		Command:      p.Build.Command,
		SourceRoot:   p.Source.Root,
		ArtifactPath: p.Build.Artifact,
		Env:          p.Build.Env,
		Exclude:      a.fingerprintExcludes(),
	}
	gen := &chainspec.Generator{Env: p.Chain.Env, Dir: p.Workspace}
	conv := &chainspec.Converter{Env: p.Chain.Env, Dir: p.Workspace, DisableDefaultBootnode: p.Chain.DisableDefaultBootnode}

	orch, err := bootstrap.New(b, gen, conv, bootstrap.Config{
		Profile:                chainspec.Profile(p.Chain.Profile),
		DisableDefaultBootnode: p.Chain.DisableDefaultBootnode,
		PlainOutput:            p.Chain.PlainOutput,
		RawOutput:              p.Chain.RawOutput,
	})
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

// fingerprintExcludes lists everything below the source root that the
// pipeline itself writes, on top of the configured exclusions.
func (a *App) fingerprintExcludes() []string {
	p := a.pipeline
	excludes := append([]string(nil), p.Source.Exclude...)
	generated := []string{p.LockFile, buildOutputDir(p.Source.Root, p.Build.Artifact), p.Chain.PlainOutput, p.Chain.RawOutput}
	if p.Types != nil {
		generated = append(generated, p.Types.Output)
	}
	if p.Release != nil {
		generated = append(generated, p.Release.Dir)
	}
	for _, path := range generated {
		rel, err := filepath.Rel(p.Source.Root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		excludes = append(excludes, filepath.ToSlash(rel))
	}
	return excludes
}

// buildOutputDir returns the top-level directory under root that holds the
// artifact, e.g. "target" for target/release/node. Build tools leave
// dependency files and caches there next to the executable. An artifact at
// the top of root, or outside it, is returned unchanged.
func buildOutputDir(root, artifact string) string {
	rel, err := filepath.Rel(root, artifact)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return artifact
	}
	top, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		return artifact
	}
	return filepath.Join(root, top)
}

func (a *App) runTypes(ctx context.Context) (*typereg.Registry, error) {
	t := a.pipeline.Types
	if t == nil {
		return nil, failure.New(failure.KindConfig, "types", "configuration has no 'types' block")
	}
	return typereg.Aggregate(ctx, typereg.Options{
		Modules:   t.Modules,
		Overrides: t.Overrides,
		Source:    &typereg.DirSource{Root: t.Root, Pattern: t.FragmentPattern},
		Output:    t.Output,
		Workers:   t.Workers,
	})
}

// stageRelease copies the distributable into the release directory, when
// one is configured.
func (a *App) stageRelease(ctx context.Context, res *bootstrap.Result, withTypes bool) error {
	p := a.pipeline
	if p.Release == nil {
		a.logger.Debug("No release directory configured; skipping release staging.")
		return nil
	}
	files := []release.File{
		{Name: filepath.Base(res.Final.Path), Source: res.Final.Path},
		{Name: filepath.Base(res.Plain.Path), Source: res.Plain.Path},
		{Name: filepath.Base(res.Raw.Path), Source: res.Raw.Path},
	}
	if withTypes && p.Types != nil {
		files = append(files, release.File{Name: filepath.Base(p.Types.Output), Source: p.Types.Output})
	}
	_, err := release.Stage(ctx, release.Options{
		Dir:     p.Release.Dir,
		RunID:   a.runID,
		Profile: p.Chain.Profile,
		Files:   files,
	})
	return err
}
