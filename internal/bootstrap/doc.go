// Package bootstrap drives the two-pass build that produces a genesis
// chain spec and the executable that embeds it.
//
// The node cannot describe its own genesis until it exists, and the
// distributable must embed the raw spec it describes. The orchestrator
// therefore runs four stages as a small dependency graph:
//
//	build.first -> spec.plain -> spec.raw -> build.second
//	     \___________________________________^
//
// Stages run one at a time in topological order. Each stage checks the
// state it starts from, and the hand-offs between stages are guarded by
// content stamps so that a raw spec is never embedded into a build of a
// different source tree.
package bootstrap
