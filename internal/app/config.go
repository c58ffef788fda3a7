package app

import (
	"fmt"
	"strings"
)

// Command selects what a run does.
type Command string

const (
	// CommandBootstrap runs the two-pass build and stages a release.
	CommandBootstrap Command = "bootstrap"
	// CommandTypes aggregates the type registry.
	CommandTypes Command = "types"
	// CommandAll runs bootstrap, then types, then stages a release.
	CommandAll Command = "all"
)

// Commands lists every command in the order usage text shows them.
var Commands = []Command{CommandBootstrap, CommandTypes, CommandAll}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string
	Command    Command

	// Profile, when set, replaces the chain profile of the configuration file.
	Profile string
	// Workers, when positive, replaces types.workers.
	Workers int

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, fmt.Errorf("ConfigPath is a required configuration field and cannot be empty")
	}
	valid := false
	for _, c := range Commands {
		if cfg.Command == c {
			valid = true
			break
		}
	}
	if !valid {
		names := make([]string, len(Commands))
		for i, c := range Commands {
			names[i] = string(c)
		}
		return nil, fmt.Errorf("unknown command %q: must be one of %s", cfg.Command, strings.Join(names, ", "))
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative")
	}
	return &cfg, nil
}
