package bag

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/birkland/dansbag/metadata"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Mismatch describes a file whose content does not match its manifest entry
type Mismatch struct {
	Path     string
	Expected metadata.Digest
	Actual   metadata.Digest // empty if the file is missing
}

func (m Mismatch) String() string {
	if m.Actual == "" {
		return fmt.Sprintf("%s is listed in the manifest but missing", m.Path)
	}
	return fmt.Sprintf("%s has checksum %s, manifest says %s", m.Path, m.Actual, m.Expected)
}

// NewHash creates a hash for the given digest algorithm
func NewHash(alg metadata.DigestAlgorithm) (hash.Hash, error) {
	switch alg {
	case metadata.MD5:
		return md5.New(), nil
	case metadata.SHA1:
		return sha1.New(), nil
	case metadata.SHA256:
		return sha256.New(), nil
	case metadata.SHA512:
		return sha512.New(), nil
	default:
		return nil, errors.Errorf("unsupported digest algorithm %s", alg)
	}
}

// Digest computes the digest of the file at the bag-relative path
func (b *Bag) Digest(rel string, alg metadata.DigestAlgorithm) (metadata.Digest, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}

	f, err := b.OpenFile(rel)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "could not read %s", rel)
	}
	return metadata.Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Verify recomputes the digest of every file listed in the manifest, using the given
// number of concurrent workers, and returns the files that don't match sorted by path.
// An error is returned only if verification itself could not be performed.
func (b *Bag) Verify(ctx context.Context, manifest metadata.Manifest, alg metadata.DigestAlgorithm, workers int) ([]Mismatch, error) {
	if _, err := NewHash(alg); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	index := manifest.Index()
	q := make(chan string, workers)

	var mu sync.Mutex
	var mismatches []Mismatch

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for rel := range q {
				expected := index[rel]
				actual, err := b.Digest(rel, alg)
				if err != nil && !os.IsNotExist(errors.Cause(err)) {
					return err
				}

				if actual != expected {
					mu.Lock()
					mismatches = append(mismatches, Mismatch{Path: rel, Expected: expected, Actual: actual})
					mu.Unlock()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(q)
		for _, rel := range manifest.Paths() {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case q <- rel:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "could not verify %s checksums", alg)
	}

	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Path < mismatches[j].Path })
	return mismatches, nil
}
