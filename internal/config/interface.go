package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the pipeline configuration at path, translates it into the
	// format-agnostic model and resolves relative paths against the
	// directory that holds the file.
	Load(ctx context.Context, path string) (*Pipeline, error)
}
