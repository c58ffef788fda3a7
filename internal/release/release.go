// Package release stages the distributable of a bootstrap run: the final
// executable, the chain specs and the type registry, together with a
// manifest of their stamps.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"

	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/fsutil"
	"github.com/vk/genesisforge/internal/stamp"
)

const op = "release.stage"

// ManifestName is the manifest file written into every release directory.
const ManifestName = "manifest.json"

// File is one file of a release.
type File struct {
	// Name is the file name inside the release directory.
	Name   string
	Source string
}

// Options describes a release.
type Options struct {
	Dir     string
	RunID   string
	Profile string
	Files   []File
}

// ManifestEntry records a staged file.
type ManifestEntry struct {
	Name  string      `json:"name"`
	Size  int64       `json:"size"`
	Stamp stamp.Stamp `json:"stamp"`
}

// Manifest lists the content of a release directory.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Profile string          `json:"profile,omitempty"`
	Files   []ManifestEntry `json:"files"`
}

func (o *Options) validate() error {
	if o.Dir == "" {
		return failure.New(failure.KindConfig, op, "release directory is not configured")
	}
	seen := map[string]bool{ManifestName: true}
	for _, f := range o.Files {
		if f.Name == "" || f.Name != filepath.Base(f.Name) || strings.HasPrefix(f.Name, ".") {
			return failure.New(failure.KindConfig, op, "invalid release file name %q", f.Name)
		}
		if seen[f.Name] {
			return failure.New(failure.KindConfig, op, "release file name %q is used twice", f.Name)
		}
		seen[f.Name] = true
		if f.Source == "" {
			return failure.New(failure.KindConfig, op, "release file %q has no source", f.Name)
		}
	}
	return nil
}

// Stage copies the files into a fresh directory next to opts.Dir and
// swaps it into place once every copy succeeded. On failure an existing
// release directory is left as it was.
func Stage(ctx context.Context, opts Options) (_ *Manifest, err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	parent := filepath.Dir(opts.Dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot create release parent directory"), parent)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(opts.Dir)+".staging-*")
	if err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot create staging directory"), parent)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()

	manifest := &Manifest{RunID: opts.RunID, Profile: opts.Profile, Files: []ManifestEntry{}}
	copyOpts := cp.Options{Sync: true, PreserveTimes: true}
	for _, f := range opts.Files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("release staging cancelled: %w", err)
		}
		dest := filepath.Join(staging, f.Name)
		if err := cp.Copy(f.Source, dest, copyOpts); err != nil {
			return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot copy %s into the release", f.Name), f.Source)
		}
		info, err := os.Stat(dest)
		if err != nil {
			return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot stat staged file"), dest)
		}
		st, err := stamp.File(dest)
		if err != nil {
			return nil, failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot stamp staged file"), dest)
		}
		manifest.Files = append(manifest.Files, ManifestEntry{Name: f.Name, Size: info.Size(), Stamp: st})
		logger.Debug("File staged.", "name", f.Name, "source", f.Source, "stamp", st.Short())
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding release manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(staging, ManifestName), append(data, '\n'), 0o644); err != nil {
		return nil, failure.Wrap(failure.KindOutputWrite, op, err, "cannot write release manifest")
	}

	if err := swap(ctx, staging, opts.Dir); err != nil {
		return nil, err
	}

	logger.Info("📦 Release staged.", "dir", opts.Dir, "files", len(manifest.Files))
	return manifest, nil
}

// rename is replaced in tests to simulate a failing move.
var rename = os.Rename

// swap moves staging to dir. A previous release is set aside first and put
// back when the move fails; it is removed only once the new release is in
// place.
func swap(ctx context.Context, staging, dir string) error {
	backup := staging + ".previous"
	hadPrevious := false
	if _, err := os.Lstat(dir); err == nil {
		if err := rename(dir, backup); err != nil {
			return failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot set previous release aside"), dir)
		}
		hadPrevious = true
	} else if !os.IsNotExist(err) {
		return failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot inspect previous release"), dir)
	}

	if err := rename(staging, dir); err != nil {
		if hadPrevious {
			if rerr := rename(backup, dir); rerr != nil {
				ctxlog.FromContext(ctx).Error("Cannot restore previous release.", "backup", backup, "error", rerr)
			}
		}
		return failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot move release into place"), dir)
	}

	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			ctxlog.FromContext(ctx).Warn("Cannot remove previous release.", "backup", backup, "error", err)
		}
	}
	return nil
}

// ReadManifest loads the manifest of a staged release.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding release manifest: %w", err)
	}
	return &m, nil
}
