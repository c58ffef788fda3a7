// Package chainspec produces genesis chain specification documents by
// driving the node executable's build-spec mode.
//
// The Generator emits a Plain document for a chain profile. The Converter
// feeds a persisted Plain document back to the same executable to obtain
// the Raw, storage-level document. Both refuse to run against an
// executable whose bytes no longer match the artifact stamp they were
// handed, and the Converter refuses plain documents produced by a
// different executable.
package chainspec
