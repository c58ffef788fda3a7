// Package app wires configuration, logging and the pipeline components
// together. It is decoupled from any specific entrypoint like a CLI.
package app
