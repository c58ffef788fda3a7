package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level construct of a pipeline file.
type fileRoot struct {
	LockFile string        `hcl:"lock_file,optional"`
	Source   *SourceBlock  `hcl:"source,block"`
	Build    *BuildBlock   `hcl:"build,block"`
	Chain    *ChainBlock   `hcl:"chain,block"`
	Types    *TypesBlock   `hcl:"types,block"`
	Release  *ReleaseBlock `hcl:"release,block"`
}

// SourceBlock is the HCL schema of `source { ... }`.
type SourceBlock struct {
	Root    string   `hcl:"root,optional"`
	Exclude []string `hcl:"exclude,optional"`
}

// BuildBlock is the HCL schema of `build { ... }`.
type BuildBlock struct {
	Command  []string          `hcl:"command"`
	Artifact string            `hcl:"artifact"`
	Env      map[string]string `hcl:"env,optional"`
}

// ChainBlock is the HCL schema of `chain "<profile>" { ... }`.
type ChainBlock struct {
	Profile                string            `hcl:"profile,label"`
	DisableDefaultBootnode *bool             `hcl:"disable_default_bootnode,optional"`
	PlainOutput            string            `hcl:"plain_output"`
	RawOutput              string            `hcl:"raw_output"`
	Env                    map[string]string `hcl:"env,optional"`
}

// TypesBlock is the HCL schema of `types { ... }`. Overrides stay an
// expression so definitions may be nested objects, not just strings.
type TypesBlock struct {
	Modules      []string       `hcl:"modules"`
	Root         string         `hcl:"root,optional"`
	FragmentPath string         `hcl:"fragment_path,optional"`
	Output       string         `hcl:"output"`
	Workers      int            `hcl:"workers,optional"`
	Overrides    hcl.Expression `hcl:"overrides,optional"`
}

// ReleaseBlock is the HCL schema of `release { ... }`.
type ReleaseBlock struct {
	Dir string `hcl:"dir"`
}
