// Package stamp derives content identifiers for pipeline artifacts.
//
// A Stamp is a CIDv1 (raw codec) over a BLAKE2b-256 multihash. Executables
// are stamped by their bytes, spec documents by their bytes and source
// trees by an ordered walk of relative paths and contents. Stamps never
// depend on timestamps or the network, so the same inputs always produce
// the same stamp.
package stamp

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"

	"github.com/vk/genesisforge/internal/fsutil"
)

// Stamp is the string form of a content identifier.
type Stamp string

// None is the zero stamp.
const None Stamp = ""

func (s Stamp) String() string { return string(s) }

// Short returns an abbreviated form for log lines.
func (s Stamp) Short() string {
	if len(s) <= 16 {
		return string(s)
	}
	return string(s[len(s)-12:])
}

func newHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only fails for oversized keys; no key is used.
		panic(err)
	}
	return h
}

func fromDigest(digest []byte) (Stamp, error) {
	mh, err := multihash.Encode(digest, multihash.BLAKE2B_MIN+31)
	if err != nil {
		return None, fmt.Errorf("encoding multihash: %w", err)
	}
	return Stamp(cid.NewCidV1(cid.Raw, mh).String()), nil
}

// Bytes stamps an in-memory document.
func Bytes(data []byte) Stamp {
	sum := blake2b.Sum256(data)
	s, err := fromDigest(sum[:])
	if err != nil {
		// A 32-byte BLAKE2b digest always encodes.
		panic(err)
	}
	return s
}

// File stamps the bytes of the file at path without loading it whole.
func File(path string) (Stamp, error) {
	f, err := os.Open(path)
	if err != nil {
		return None, err
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return None, fmt.Errorf("reading %s: %w", path, err)
	}
	return fromDigest(h.Sum(nil))
}

// Tree stamps every regular file under root, skipping the excluded
// relative paths. Both file names and contents contribute, so renames
// change the stamp as well as edits.
func Tree(root string, exclude []string) (Stamp, error) {
	files, err := fsutil.WalkFiles(root, exclude)
	if err != nil {
		return None, fmt.Errorf("walking source tree %s: %w", root, err)
	}

	h := newHash()
	var lenBuf [8]byte
	for _, rel := range files {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(rel)))
		h.Write(lenBuf[:])
		h.Write([]byte(rel))

		if err := hashFile(h, filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return None, err
		}
	}
	return fromDigest(h.Sum(nil))
}

func hashFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(info.Size()))
	h.Write(lenBuf[:])
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
