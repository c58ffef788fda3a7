// This file translates decoded HCL block structs into the format-agnostic
// pipeline model, resolving every path against the workspace.

package hcl_adapter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/genesisforge/internal/config"
	"github.com/vk/genesisforge/internal/ctxlog"
)

func (l *Loader) translatePipeline(ctx context.Context, workspace string, root *fileRoot) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)

	p := &config.Pipeline{
		Workspace: workspace,
		LockFile:  resolve(workspace, root.LockFile),
	}
	if p.LockFile == "" {
		p.LockFile = filepath.Join(workspace, config.DefaultLockFile)
	}

	if root.Source != nil {
		p.Source = &config.Source{
			Root:    resolve(workspace, defaultString(root.Source.Root, ".")),
			Exclude: root.Source.Exclude,
		}
	}

	if root.Build != nil {
		p.Build = &config.Build{
			Command:  root.Build.Command,
			Artifact: resolve(workspace, root.Build.Artifact),
			Env:      root.Build.Env,
		}
	}

	if root.Chain != nil {
		disable := true
		if root.Chain.DisableDefaultBootnode != nil {
			disable = *root.Chain.DisableDefaultBootnode
		}
		p.Chain = &config.Chain{
			Profile:                root.Chain.Profile,
			DisableDefaultBootnode: disable,
			PlainOutput:            resolve(workspace, root.Chain.PlainOutput),
			RawOutput:              resolve(workspace, root.Chain.RawOutput),
			Env:                    root.Chain.Env,
		}
		logger.Debug("Translated chain block.", "profile", p.Chain.Profile, "disable_default_bootnode", disable)
	}

	if root.Types != nil {
		types, err := l.translateTypes(ctx, workspace, p.Source, root.Types)
		if err != nil {
			return nil, err
		}
		p.Types = types
	}

	if root.Release != nil {
		p.Release = &config.Release{Dir: resolve(workspace, root.Release.Dir)}
	}

	return p, nil
}

func (l *Loader) translateTypes(ctx context.Context, workspace string, src *config.Source, b *TypesBlock) (*config.Types, error) {
	typesRoot := workspace
	if src != nil {
		typesRoot = src.Root
	}
	if b.Root != "" {
		typesRoot = resolve(workspace, b.Root)
	}

	overrides := map[string]any{}
	if isExprDefined(ctx, b.Overrides, "overrides") {
		val, diags := b.Overrides.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid types.overrides: %w", diags)
		}
		decoded, err := objectToMap(val)
		if err != nil {
			return nil, fmt.Errorf("invalid types.overrides: %w", err)
		}
		overrides = decoded
	}

	return &config.Types{
		Modules:         b.Modules,
		Root:            typesRoot,
		FragmentPattern: defaultString(b.FragmentPath, config.DefaultFragmentPattern),
		Output:          resolve(workspace, b.Output),
		Overrides:       overrides,
		Workers:         b.Workers,
	}, nil
}

// resolve makes p absolute relative to base. Empty stays empty.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
