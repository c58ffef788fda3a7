package builder

import (
	"context"

	"github.com/vk/genesisforge/internal/stamp"
)

// Artifact is a built node executable.
type Artifact struct {
	Path string
	// Pass is 1 for the bootstrap build and 2 for the distributable.
	Pass int
	// Stamp identifies the executable bytes.
	Stamp stamp.Stamp
	// SourceFingerprint identifies the source tree the build started from.
	SourceFingerprint stamp.Stamp
}

// Builder produces an executable artifact from the source tree.
type Builder interface {
	Build(ctx context.Context, pass int) (*Artifact, error)
	// Fingerprint stamps the current source tree the way Build does,
	// without compiling.
	Fingerprint(ctx context.Context) (stamp.Stamp, error)
}
