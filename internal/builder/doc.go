// Package builder compiles the node executable from its source tree.
//
// A build either yields a complete, stamped Artifact or fails with a
// failure.KindBuild error. Builds are never retried. The Artifact records
// the stamp of the executable bytes and the fingerprint of the source tree
// it was compiled from, so later stages can prove they are talking to the
// executable they expect.
package builder
