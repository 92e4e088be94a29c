package metadata

import (
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
)

var digestLengths = map[DigestAlgorithm]int{
	MD5:    32,
	SHA1:   40,
	SHA256: 64,
	SHA512: 128,
}

// Supported tells whether digests of the given algorithm can be verified
func (a DigestAlgorithm) Supported() bool {
	_, ok := digestLengths[a]
	return ok
}

// ManifestError lists everything that is wrong with a manifest
type ManifestError struct {
	Algorithm DigestAlgorithm
	Problems  []string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest-%s.txt is inconsistent: %s", e.Algorithm, strings.Join(e.Problems, "; "))
}

// Validate verifies whether a manifest is internally consistent.
// A positive result (no error returned) means only that a given manifest is plausible.  It does
// not imply that the files referenced by the manifest actually exist, or match their claimed checksums, etc.
//
// Internally consistent
//
// Internally consistent means:
//
// Digest values match the length and composition implied by their algorithm.
//
// Paths are relative, solidus delimited, and do not escape the bag (no . or .. segments).
//
// A single path has exactly one digest
// (i.e. a path doesn't appear twice in the manifest, with the same or different digests).
func (m Manifest) Validate(alg DigestAlgorithm) error {
	var problems []string

	length, known := digestLengths[alg]
	if !known {
		problems = append(problems, fmt.Sprintf("unsupported digest algorithm %q", alg))
	}

	seen := make(map[string]int)

	digests := make([]string, 0, len(m))
	for d := range m {
		digests = append(digests, string(d))
	}
	sort.Strings(digests)

	for _, d := range digests {
		if known && (len(d) != length || !isHex(d)) {
			problems = append(problems, fmt.Sprintf("digest %q is not a valid %s value", d, alg))
		}

		for _, p := range m[Digest(d)] {
			seen[p]++
			if seen[p] == 2 {
				problems = append(problems, fmt.Sprintf("path %q is listed more than once", p))
			}
			if msg := checkPath(p); msg != "" {
				problems = append(problems, fmt.Sprintf("path %q %s", p, msg))
			}
		}
	}

	if len(problems) > 0 {
		return &ManifestError{Algorithm: alg, Problems: problems}
	}
	return nil
}

func checkPath(p string) string {
	switch {
	case strings.HasPrefix(p, "/"):
		return "is absolute"
	case strings.Contains(p, "\\"):
		return "contains a backslash"
	case path.Clean(p) != p:
		return "is not in canonical form"
	case p == ".." || strings.HasPrefix(p, "../"):
		return "escapes the bag"
	}
	return ""
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
