package typereg

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/fsutil"
)

const opAggregate = "typereg.aggregate"

// Options configures one aggregation run.
type Options struct {
	// Modules is the fold order. Later modules win collisions.
	Modules []string
	// Overrides seed the registry and are never replaced.
	Overrides map[string]any
	Source    Source
	// Output is the registry file. It is replaced as a whole.
	Output string
	// Workers bounds parallel fragment loads; zero or less means one
	// worker per module.
	Workers int
}

func (o *Options) validate() error {
	if o.Source == nil {
		return failure.New(failure.KindConfig, opAggregate, "no fragment source configured")
	}
	if o.Output == "" {
		return failure.New(failure.KindConfig, opAggregate, "no registry output path configured")
	}
	if len(o.Modules) == 0 {
		return failure.New(failure.KindConfig, opAggregate, "module list is empty")
	}
	seen := make(map[string]bool, len(o.Modules))
	for _, m := range o.Modules {
		if m == "" {
			return failure.New(failure.KindConfig, opAggregate, "module list contains an empty name")
		}
		if seen[m] {
			return failure.New(failure.KindConfig, opAggregate, "module %q is listed more than once", m)
		}
		seen[m] = true
	}
	for name, def := range o.Overrides {
		if err := checkDefinition(def); err != nil {
			return failure.Wrap(failure.KindConfig, opAggregate, err, "invalid override %q", name)
		}
	}
	return nil
}

// Aggregate loads every module's fragment, merges them over the overrides
// and writes the canonical registry to opts.Output. If any fragment is
// missing or malformed, nothing is written and an existing output file is
// left as it was.
func Aggregate(ctx context.Context, opts Options) (*Registry, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("🧩 Aggregating type registry.", "modules", len(opts.Modules), "overrides", len(opts.Overrides))

	frags, err := loadAll(ctx, opts.Source, opts.Modules, opts.Workers)
	if err != nil {
		return nil, err
	}

	reg := Merge(ctx, opts.Overrides, frags)
	data, err := reg.Canonical()
	if err != nil {
		return nil, failure.Wrap(failure.KindOutputWrite, opAggregate, err, "cannot render type registry")
	}
	if err := fsutil.WriteFileAtomic(opts.Output, data, 0o644); err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, opAggregate, err, "cannot write type registry"), opts.Output)
	}

	logger.Info("✅ Type registry written.", "path", opts.Output, "types", reg.Len())
	return reg, nil
}

// loadAll loads fragments concurrently and returns them in module order.
// Every load runs to completion, so when several fail the error of the
// earliest module is returned.
func loadAll(ctx context.Context, src Source, modules []string, workers int) ([]*Fragment, error) {
	if workers <= 0 || workers > len(modules) {
		workers = len(modules)
	}
	frags := make([]*Fragment, len(modules))
	errs := make([]error, len(modules))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, module := range modules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			frag, err := src.Load(ctx, module)
			if err != nil {
				errs[i] = err
				return nil
			}
			ctxlog.FromContext(ctx).Debug("Fragment loaded.", "module", module, "path", frag.Path, "types", len(frag.Entries))
			frags[i] = frag
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fragment loading cancelled: %w", err)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return frags, nil
}

// Merge folds fragments, in order, over the overrides.
func Merge(ctx context.Context, overrides map[string]any, frags []*Fragment) *Registry {
	logger := ctxlog.FromContext(ctx)
	reg := newRegistry()
	for name, def := range overrides {
		reg.entries[name] = Entry{Definition: def, Source: OverrideSource}
	}

	for _, frag := range frags {
		for _, e := range frag.Entries {
			prev, exists := reg.entries[e.Name]
			switch {
			case exists && prev.Source == OverrideSource:
				logger.Debug("Module definition ignored; the override wins.", "type", e.Name, "module", frag.Module)
				continue
			case exists:
				logger.Debug("Type redefined by a later module.", "type", e.Name, "previous", prev.Source, "winner", frag.Module)
			}
			reg.entries[e.Name] = Entry{Definition: e.Definition, Source: frag.Module}
		}
	}
	return reg
}
