package bag

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/birkland/dansbag/metadata"
	"github.com/pkg/errors"
)

// AtomicPrefix is a file prefix for temporary files that are created during
// AtomicWrite
const AtomicPrefix = ".dansbag.atomic."

// BagItVersion written into the declaration of new bags
const BagItVersion = "1.0"

// Writer creates a new bag.  Files are Put one at a time (concurrently, if desired),
// their digests computed as they are written; Commit writes the tag files and manifests.
type Writer struct {
	sync.Mutex
	dir       string
	algs      []metadata.DigestAlgorithm
	payload   map[metadata.DigestAlgorithm]metadata.Manifest
	tags      map[metadata.DigestAlgorithm]metadata.Manifest
	info      metadata.Tags
	octets    int64
	files     int
	committed bool
}

// Create starts a new bag in the given directory, which must not exist or be empty.
// Manifests are written for every given algorithm (sha1 if none are given).
func Create(dir string, algs ...metadata.DigestAlgorithm) (*Writer, error) {
	if len(algs) == 0 {
		algs = []metadata.DigestAlgorithm{metadata.SHA1}
	}
	for _, alg := range algs {
		if _, err := NewHash(alg); err != nil {
			return nil, err
		}
	}

	addr, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not calculate absolute path of %s", dir)
	}

	if entries, err := os.ReadDir(addr); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("refusing to create a bag in non-empty directory %s", addr)
	}

	if err := os.MkdirAll(filepath.Join(addr, metadata.PayloadDir), 0775); err != nil {
		return nil, errors.Wrapf(err, "could not create payload directory")
	}

	w := &Writer{
		dir:     addr,
		algs:    sortedAlgorithms(algs),
		payload: make(map[metadata.DigestAlgorithm]metadata.Manifest, len(algs)),
		tags:    make(map[metadata.DigestAlgorithm]metadata.Manifest, len(algs)),
	}
	for _, alg := range algs {
		w.payload[alg] = make(metadata.Manifest)
		w.tags[alg] = make(metadata.Manifest)
	}
	return w, nil
}

// Dir is the absolute path of the bag being written
func (w *Writer) Dir() string {
	return w.dir
}

// SetInfo replaces all values of the label in bag-info.txt.  No values removes the label.
func (w *Writer) SetInfo(label string, values ...string) {
	w.Lock()
	defer w.Unlock()

	kept := w.info[:0]
	for _, t := range w.info {
		if !strings.EqualFold(t.Label, label) {
			kept = append(kept, t)
		}
	}
	w.info = kept
	for _, v := range values {
		w.info = append(w.info, metadata.Tag{Label: label, Value: v})
	}
}

// Put (safely) writes the content of the reader to the bag-relative path, and records its
// digests in the payload manifests (for files under data/) or tag manifests (for everything
// else).  The file is written to a temporary file first, and renamed when complete.
func (w *Writer) Put(rel string, r io.Reader) error {
	w.Lock()
	committed := w.committed
	w.Unlock()
	if committed {
		return fmt.Errorf("cannot put %s, bag %s is already committed", rel, w.dir)
	}

	name := path.Clean(filepath.ToSlash(rel))
	if _, _, manifest := metadata.ParseManifestName(name); manifest || name == metadata.DeclarationFile || name == metadata.InfoFile {
		return fmt.Errorf("%s is written on commit", name)
	}
	return w.put(rel, r)
}

func (w *Writer) put(rel string, r io.Reader) (err error) {
	rel, err = bagPath(rel)
	if err != nil {
		return err
	}

	ppath := filepath.Join(w.dir, filepath.FromSlash(rel))
	if err = os.MkdirAll(filepath.Dir(ppath), 0775); err != nil {
		return errors.Wrapf(err, "could not create directory for %s", rel)
	}

	fw, err := AtomicWrite(ppath)
	if err != nil {
		return errors.Wrapf(err, "could not create file for %s", rel)
	}
	defer func() {
		if e := fw.Rollback(); e != nil && err == nil {
			err = errors.Wrapf(e, "error rolling back write of %s", rel)
		}
	}()

	hashes := make(map[metadata.DigestAlgorithm]hash.Hash, len(w.algs))
	writers := []io.Writer{fw}
	for _, alg := range w.algs {
		h, _ := NewHash(alg)
		hashes[alg] = h
		writers = append(writers, h)
	}

	n, err := io.Copy(io.MultiWriter(writers...), r)
	if err != nil {
		return errors.Wrapf(err, "could not copy content of %s", rel)
	}

	if err = fw.Close(); err != nil {
		return errors.Wrapf(err, "error finalizing content of %s", rel)
	}

	w.Lock()
	defer w.Unlock()

	manifests := w.tags
	if strings.HasPrefix(rel, metadata.PayloadDir+"/") {
		manifests = w.payload
		w.octets += n
		w.files++
	}
	for alg, h := range hashes {
		manifests[alg].Put(rel, metadata.Digest(fmt.Sprintf("%x", h.Sum(nil))))
	}
	return nil
}

// Commit writes bagit.txt, bag-info.txt (adding Bagging-Date and Payload-Oxum unless they
// are set), the payload manifests, and finally the tag manifests.
func (w *Writer) Commit(date time.Time) error {
	w.Lock()
	if w.committed {
		w.Unlock()
		return fmt.Errorf("bag %s is already committed", w.dir)
	}
	w.committed = true

	info := append(metadata.Tags(nil), w.info...)
	if _, ok := info.First("Bagging-Date"); !ok {
		info = append(info, metadata.Tag{Label: "Bagging-Date", Value: date.Format("2006-01-02")})
	}
	if _, ok := info.First("Payload-Oxum"); !ok {
		info = append(info, metadata.Tag{Label: "Payload-Oxum", Value: fmt.Sprintf("%d.%d", w.octets, w.files)})
	}
	w.Unlock()

	declaration := fmt.Sprintf("BagIt-Version: %s\nTag-File-Character-Encoding: UTF-8\n", BagItVersion)
	if err := w.put(metadata.DeclarationFile, strings.NewReader(declaration)); err != nil {
		return errors.Wrapf(err, "could not write declaration")
	}

	var sb strings.Builder
	for _, t := range info {
		fmt.Fprintf(&sb, "%s: %s\n", t.Label, t.Value)
	}
	if err := w.put(metadata.InfoFile, strings.NewReader(sb.String())); err != nil {
		return errors.Wrapf(err, "could not write bag info")
	}

	for _, alg := range w.algs {
		if err := w.putManifest(metadata.ManifestFile(alg), w.payload[alg]); err != nil {
			return err
		}
	}

	// Tag manifests cover the payload manifests, but not each other
	for _, alg := range w.algs {
		if err := w.writeManifest(metadata.TagManifestFile(alg), w.tags[alg]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) putManifest(name string, m metadata.Manifest) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(m.Serialize(pw))
	}()
	err := w.put(name, pr)
	pr.Close()
	return errors.Wrapf(err, "could not write %s", name)
}

func (w *Writer) writeManifest(name string, m metadata.Manifest) (err error) {
	fw, err := AtomicWrite(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer func() {
		if e := fw.Rollback(); e != nil && err == nil {
			err = e
		}
	}()

	if err = m.Serialize(fw); err != nil {
		return errors.Wrapf(err, "could not write %s", name)
	}
	return fw.Close()
}

// bagPath cleans a bag-relative path, refusing anything that would end up outside the bag
func bagPath(rel string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(rel))
	if cleaned == "." || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%q is not a path inside the bag", rel)
	}
	return cleaned, nil
}

// ManagedWrite encapsulates an io.WriteCloser such that the write can be
// rolled back upon error.
type ManagedWrite struct {
	io.WriteCloser
	closeFunc    func() error
	rollbackFunc func() error
	closed       bool
}

// Close frees up any resources and performs the necessary actions to
// commit the write.
func (w *ManagedWrite) Close() error {
	return w.closeWith(w.closeFunc)
}

// Rollback attempts to undo any tangible effects of an incomplete/errored write.
// It does nothing after a successful Close.
func (w *ManagedWrite) Rollback() error {
	return w.closeWith(w.rollbackFunc)
}

func (w *ManagedWrite) closeWith(f func() error) error {
	if w.closed {
		return nil
	}
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	w.closed = true

	if f != nil {
		return f()
	}

	return nil
}

// AtomicWrite creates a temporary file which is opened for write (only),
// in the same directory as the specified path.  Once written and closed,
// it atomically renames the temp file to match the given path.
//
// Note, Close() may fail.  If it does, it is up to the caller to determine the
// appropriate response (e.g. Rollback(), or log it and manually inspect)
func AtomicWrite(path string) (*ManagedWrite, error) {
	tname := filepath.Join(filepath.Dir(path), AtomicPrefix+filepath.Base(path))
	tfile, err := os.OpenFile(tname, os.O_WRONLY|os.O_EXCL|os.O_CREATE, 0664)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create temporary file %s", tname)
	}

	return &ManagedWrite{
		WriteCloser: tfile,
		closeFunc: func() error {
			err := os.Rename(tname, path)
			return errors.Wrapf(err, "could not rename %s to %s", tname, path)
		},
		rollbackFunc: func() error {
			return os.Remove(tname)
		},
	}, nil
}

func sortedAlgorithms(algs []metadata.DigestAlgorithm) []metadata.DigestAlgorithm {
	seen := make(map[metadata.DigestAlgorithm]bool, len(algs))
	var sorted []metadata.DigestAlgorithm
	for _, alg := range algs {
		if !seen[alg] {
			seen[alg] = true
			sorted = append(sorted, alg)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}
