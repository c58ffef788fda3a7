// Package config defines the format-agnostic model of a pipeline run along
// with the Loader interface that fills it from a configuration source.
//
// The `config.Pipeline` is the single source of truth for the bootstrap
// orchestrator, the type registry aggregator and the release stager.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
