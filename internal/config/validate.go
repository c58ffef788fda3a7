package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate checks the pipeline for missing or contradictory settings.
// Every problem is reported, not just the first.
func (p *Pipeline) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if p.Build == nil && p.Chain == nil && p.Types == nil {
		add("configuration declares none of 'build', 'chain' or 'types'")
	}

	if p.Chain != nil {
		if p.Build == nil {
			add("'chain' requires a 'build' block to produce the executable")
		}
		if p.Source == nil {
			add("'chain' requires a 'source' block")
		}
		if strings.TrimSpace(p.Chain.Profile) == "" {
			add("chain profile must not be empty")
		}
		if p.Chain.PlainOutput == "" {
			add("chain.plain_output is required")
		}
		if p.Chain.RawOutput == "" {
			add("chain.raw_output is required")
		}
		if p.Chain.PlainOutput != "" && p.Chain.PlainOutput == p.Chain.RawOutput {
			add("chain.plain_output and chain.raw_output must differ")
		}
	}

	if p.Build != nil {
		if len(p.Build.Command) == 0 {
			add("build.command must not be empty")
		}
		if p.Build.Artifact == "" {
			add("build.artifact is required")
		}
	}

	if p.Types != nil {
		if len(p.Types.Modules) == 0 {
			add("types.modules must list at least one module")
		}
		seen := make(map[string]struct{}, len(p.Types.Modules))
		for _, m := range p.Types.Modules {
			if strings.TrimSpace(m) == "" {
				add("types.modules contains an empty module name")
				continue
			}
			if _, ok := seen[m]; ok {
				add("types.modules lists '%s' more than once", m)
			}
			seen[m] = struct{}{}
		}
		if !strings.Contains(p.Types.FragmentPattern, "{module}") {
			add("types.fragment_path %q must contain '{module}'", p.Types.FragmentPattern)
		}
		if p.Types.Output == "" {
			add("types.output is required")
		}
		if p.Types.Workers < 0 {
			add("types.workers must not be negative")
		}
		for _, name := range sortedKeys(p.Types.Overrides) {
			switch p.Types.Overrides[name].(type) {
			case string, map[string]any, []any:
			default:
				add("types.overrides.%s must be a string or a structure", name)
			}
		}
	}

	if p.Release != nil && p.Release.Dir == "" {
		add("release.dir is required")
	}

	if len(errs) > 0 {
		return errors.New("invalid pipeline configuration:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
