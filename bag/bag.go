package bag

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/birkland/dansbag/metadata"
	"github.com/pkg/errors"
)

// ErrUnusable is the cause of any error returned when a bag cannot be opened at all
// (it does not exist, is not a directory, or cannot be read).  Such a bag never
// reaches the rule engine.
var ErrUnusable = errors.New("bag is unusable")

// Bag provides read access to a bag on the filesystem.  Parsed tag files and metadata
// documents are memoized in a Documents cache that lives as long as the Bag does,
// so a Bag should be opened once per validation run and dropped afterwards.
type Bag struct {
	Path string
	docs *Documents
}

// Open verifies that the given directory can be read, and returns a Bag with a fresh
// document cache.  Whether the directory actually is a valid bag is for the profile
// rules to decide.
func Open(dir string) (*Bag, error) {
	addr, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrUnusable, "could not calculate absolute path of %s: %s", dir, err)
	}

	info, err := os.Stat(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrUnusable, "%s", err)
	}

	if !info.IsDir() {
		return nil, errors.Wrapf(ErrUnusable, "%s is not a directory", addr)
	}

	f, err := os.Open(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrUnusable, "%s", err)
	}
	defer f.Close()

	if _, err = f.Readdirnames(1); err != nil && err != io.EOF {
		return nil, errors.Wrapf(ErrUnusable, "could not list %s: %s", addr, err)
	}

	return &Bag{
		Path: addr,
		docs: NewDocuments(),
	}, nil
}

// Locate attempts find the first directory holding a bag declaration (bagit.txt)
// in the given directory, or any parent directories.  The primary use case
// is finding the base directory of a bag when given the location of some file
// somewhere within it.
func Locate(loc string) (string, error) {
	addr, err := filepath.Abs(loc)
	if err != nil {
		return "", errors.Wrapf(err, "could not make absolute %s", loc)
	}

	for {
		found, err := isBase(addr)
		if err != nil {
			return "", errors.Wrap(err, "error finding bag base directory")
		}
		if found {
			return addr, nil
		}

		parent := filepath.Dir(addr)
		if parent == addr {
			return "", fmt.Errorf("no %s found crawling up from %s", metadata.DeclarationFile, loc)
		}
		addr = parent
	}
}

// Detect if the directory holds a bag declaration.  Returns an error if there
// is a problem accessing it, other than it not existing.
func isBase(dir string) (bool, error) {
	nf, err := os.Stat(filepath.Join(dir, metadata.DeclarationFile))

	// We expect a "file not found" error if this isn't a bag base directory,
	// and simply return false in that case.  Anything else (e.g. "permission denied"),
	// we should truly return as an error
	if err != nil && !os.IsNotExist(err) && !isNotDir(err) {
		return false, errors.Wrapf(err, "error detecting bag declaration in %s", dir)
	}

	return err == nil && nf.Mode().IsRegular(), nil
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

// Documents exposes the bag's document cache
func (b *Bag) Documents() *Documents {
	return b.docs
}

// Abs maps a bag-relative, solidus delimited path to a filesystem path
func (b *Bag) Abs(rel string) string {
	return filepath.Join(b.Path, filepath.FromSlash(path.Clean("/" + rel)))
}

// Stat describes the file at the bag-relative path, without following symlinks
func (b *Bag) Stat(rel string) (os.FileInfo, error) {
	return os.Lstat(b.Abs(rel))
}

// IsFile tells whether a regular file exists at the bag-relative path
func (b *Bag) IsFile(rel string) bool {
	info, err := b.Stat(rel)
	return err == nil && info.Mode().IsRegular()
}

// IsDir tells whether a directory exists at the bag-relative path
func (b *Bag) IsDir(rel string) bool {
	info, err := b.Stat(rel)
	return err == nil && info.IsDir()
}

// OpenFile opens a file for reading, given its bag-relative path
func (b *Bag) OpenFile(rel string) (*os.File, error) {
	f, err := os.Open(b.Abs(rel))
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", rel)
	}
	return f, nil
}

// Cache keys are prefixed with the kind of document, so that the same file read by two
// accessors is parsed (and cached) by each.

// Declaration returns the parsed bagit.txt
func (b *Bag) Declaration() (*metadata.Declaration, error) {
	v, err := b.docs.Load("declaration:"+metadata.DeclarationFile, func() (interface{}, error) {
		return parseFile(b, metadata.DeclarationFile, func(r io.Reader) (interface{}, error) {
			return metadata.ParseDeclaration(r)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata.Declaration), nil
}

// Info returns the parsed bag-info.txt
func (b *Bag) Info() (metadata.Tags, error) {
	v, err := b.docs.Load("tags:"+metadata.InfoFile, func() (interface{}, error) {
		return parseFile(b, metadata.InfoFile, func(r io.Reader) (interface{}, error) {
			return metadata.ParseTags(r)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(metadata.Tags), nil
}

// Manifest returns the parsed payload manifest for the given algorithm
func (b *Bag) Manifest(alg metadata.DigestAlgorithm) (metadata.Manifest, error) {
	return b.manifest(metadata.ManifestFile(alg))
}

// TagManifest returns the parsed tag manifest for the given algorithm
func (b *Bag) TagManifest(alg metadata.DigestAlgorithm) (metadata.Manifest, error) {
	return b.manifest(metadata.TagManifestFile(alg))
}

func (b *Bag) manifest(name string) (metadata.Manifest, error) {
	v, err := b.docs.Load("manifest:"+name, func() (interface{}, error) {
		return parseFile(b, name, func(r io.Reader) (interface{}, error) {
			return metadata.ParseManifest(r)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(metadata.Manifest), nil
}

// XML returns the root element of the XML document at the bag-relative path
func (b *Bag) XML(rel string) (*metadata.Node, error) {
	v, err := b.docs.Load("xml:"+rel, func() (interface{}, error) {
		return parseFile(b, rel, func(r io.Reader) (interface{}, error) {
			return metadata.ParseXML(r)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata.Node), nil
}

// ManifestAlgorithms lists the algorithms of the payload manifests present in the bag, sorted
func (b *Bag) ManifestAlgorithms() ([]metadata.DigestAlgorithm, error) {
	payload, _, err := b.manifestAlgorithms()
	return payload, err
}

// TagManifestAlgorithms lists the algorithms of the tag manifests present in the bag, sorted
func (b *Bag) TagManifestAlgorithms() ([]metadata.DigestAlgorithm, error) {
	_, tag, err := b.manifestAlgorithms()
	return tag, err
}

type algorithms struct {
	payload []metadata.DigestAlgorithm
	tag     []metadata.DigestAlgorithm
}

func (b *Bag) manifestAlgorithms() ([]metadata.DigestAlgorithm, []metadata.DigestAlgorithm, error) {
	v, err := b.docs.Load("list:manifest-*.txt", func() (interface{}, error) {
		entries, err := os.ReadDir(b.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not list %s", b.Path)
		}

		var algs algorithms
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			alg, tag, ok := metadata.ParseManifestName(e.Name())
			switch {
			case !ok:
			case tag:
				algs.tag = append(algs.tag, alg)
			default:
				algs.payload = append(algs.payload, alg)
			}
		}

		sort.Slice(algs.payload, func(i, j int) bool { return algs.payload[i] < algs.payload[j] })
		sort.Slice(algs.tag, func(i, j int) bool { return algs.tag[i] < algs.tag[j] })
		return algs, nil
	})
	if err != nil {
		return nil, nil, err
	}
	algs := v.(algorithms)
	return algs.payload, algs.tag, nil
}

func parseFile(b *Bag, rel string, parse func(io.Reader) (interface{}, error)) (v interface{}, err error) {
	f, err := b.OpenFile(rel)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = errors.Wrapf(e, "error closing %s", rel)
		}
	}()

	v, err = parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", rel)
	}
	return v, nil
}

// NotFound tells whether an error returned by a Bag accessor means the underlying
// file simply doesn't exist.
func NotFound(err error) bool {
	return err != nil && os.IsNotExist(errors.Cause(err))
}
