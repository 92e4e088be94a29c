package metadata

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Well known tag files in the base directory of a bag
const (
	DeclarationFile = "bagit.txt"
	InfoFile        = "bag-info.txt"
	PayloadDir      = "data"
	MetadataDir     = "metadata"
)

const (
	manifestFmt    = "manifest-%s.txt"
	tagManifestFmt = "tagmanifest-%s.txt"
)

// DigestAlgorithm is identifier for a BagIt digest algorithm, as used in manifest file names
type DigestAlgorithm string

// Supported digest algorithms
const (
	MD5    DigestAlgorithm = "md5"
	SHA1   DigestAlgorithm = "sha1"
	SHA256 DigestAlgorithm = "sha256"
	SHA512 DigestAlgorithm = "sha512"
)

// Digest is a lowercase hex string representing a digest, as it appears in a manifest
type Digest string

// Manifest is a mapping of digests to bag-relative file paths, as defined by a
// manifest-<alg>.txt file.  The same content may legitimately appear under several paths.
type Manifest map[Digest][]string

// ManifestFile is the name of the payload manifest for the given algorithm
func ManifestFile(alg DigestAlgorithm) string {
	return fmt.Sprintf(manifestFmt, alg)
}

// TagManifestFile is the name of the tag manifest for the given algorithm
func TagManifestFile(alg DigestAlgorithm) string {
	return fmt.Sprintf(tagManifestFmt, alg)
}

// ParseManifestName extracts the algorithm from a (tag)manifest file name.
// The boolean is false for anything that isn't a manifest name.
func ParseManifestName(name string) (alg DigestAlgorithm, tag bool, ok bool) {
	if !strings.HasSuffix(name, ".txt") {
		return "", false, false
	}
	base := strings.TrimSuffix(name, ".txt")
	switch {
	case strings.HasPrefix(base, "tagmanifest-"):
		return DigestAlgorithm(strings.TrimPrefix(base, "tagmanifest-")), true, len(base) > len("tagmanifest-")
	case strings.HasPrefix(base, "manifest-"):
		return DigestAlgorithm(strings.TrimPrefix(base, "manifest-")), false, len(base) > len("manifest-")
	}
	return "", false, false
}

// ParseManifest parses the lines of a manifest file.  Each non-empty line is a digest,
// followed by whitespace, followed by a bag-relative path.
func ParseManifest(r io.Reader) (Manifest, error) {
	m := Manifest{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		i := strings.IndexAny(line, " \t")
		if i <= 0 {
			return nil, fmt.Errorf("malformed manifest line %d: %q", n, line)
		}

		digest := Digest(strings.ToLower(line[:i]))
		path := strings.TrimLeft(line[i:], " \t")
		if path == "" {
			return nil, fmt.Errorf("manifest line %d has no path", n)
		}

		m[digest] = append(m[digest], decodePath(path))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read manifest")
	}
	return m, nil
}

// Put adds a path with its digest
func (m Manifest) Put(path string, digest Digest) {
	m[digest] = append(m[digest], path)
}

// Serialize writes the manifest in BagIt syntax, sorted by path
func (m Manifest) Serialize(w io.Writer) error {
	index := m.Index()
	paths := m.Paths()

	bw := bufio.NewWriter(w)
	for _, p := range paths {
		if _, err := fmt.Fprintf(bw, "%s  %s\n", index[p], encodePath(p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Index inverts the manifest, giving the digest of each path.  If a path is
// (erroneously) listed under several digests, the lexically smallest digest wins;
// Validate reports that case.
func (m Manifest) Index() map[string]Digest {
	index := make(map[string]Digest, len(m))
	for digest, paths := range m {
		for _, p := range paths {
			if prev, ok := index[p]; ok && prev < digest {
				continue
			}
			index[p] = digest
		}
	}
	return index
}

// Paths lists every path in the manifest, sorted and without duplicates
func (m Manifest) Paths() []string {
	index := m.Index()
	paths := make([]string, 0, len(index))
	for p := range index {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Percent-encoding of CR, LF and % in manifest paths, per RFC 8493 section 2.1.3
var (
	pathDecoder = strings.NewReplacer("%0D", "\r", "%0d", "\r", "%0A", "\n", "%0a", "\n", "%25", "%")
	pathEncoder = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
)

func decodePath(p string) string {
	return pathDecoder.Replace(p)
}

func encodePath(p string) string {
	return pathEncoder.Replace(p)
}
