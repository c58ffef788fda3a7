package config

// DefaultLockFile is the run lock created in the workspace when the
// configuration does not name one.
const DefaultLockFile = ".genesisforge.lock"

// DefaultFragmentPattern is where a module's type fragment lives, relative
// to the types root. {module} is replaced by the module name.
const DefaultFragmentPattern = "pallets/{module}/types.json"

// Pipeline is the unified representation of one pipeline configuration.
// All paths are absolute once a Loader returns.
type Pipeline struct {
	// Workspace is the directory the configuration was loaded from.
	Workspace string
	LockFile  string

	Source  *Source
	Build   *Build
	Chain   *Chain
	Types   *Types
	Release *Release
}

// Source describes the tree the node executable is compiled from.
type Source struct {
	Root string
	// Exclude lists paths, relative to Root, left out of the source
	// fingerprint. Generated spec files and the release directory are
	// excluded automatically.
	Exclude []string
}

// Build describes how to compile the node executable.
type Build struct {
	// Command is the argv run in Source.Root, e.g. cargo build --release.
	Command []string
	// Artifact is the executable the command produces.
	Artifact string
	Env      map[string]string
}

// Chain selects the genesis configuration to materialize and where the
// plain and raw documents are persisted.
type Chain struct {
	// Profile is a preset name or a path to a spec file.
	Profile                string
	DisableDefaultBootnode bool
	PlainOutput            string
	RawOutput              string
	Env                    map[string]string
}

// Types configures the type registry aggregation.
type Types struct {
	// Modules is the fold order; later modules win collisions.
	Modules []string
	// Root is the directory fragment paths are resolved against.
	Root            string
	FragmentPattern string
	Output          string
	// Overrides are definitions intrinsic to the base runtime. Values are
	// strings or nested structures (maps, slices) as decoded from config.
	Overrides map[string]any
	// Workers bounds parallel fragment loads. Zero means one per module.
	Workers int
}

// Release describes where the distributable is staged after a bootstrap.
type Release struct {
	Dir string
}
