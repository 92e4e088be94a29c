// Package bagtest creates bags on disk for tests.  By default, a Builder produces a bag
// that conforms to the DANS BagIt profile in deposit mode; tests then break it in the one
// way they are interested in.
package bagtest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
)

// Paths of the metadata documents
const (
	DatasetXML = "metadata/dataset.xml"
	FilesXML   = "metadata/files.xml"
)

// Date every bag is committed at
var Date = time.Date(2023, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

// Dataset is a dataset.xml that satisfies the profile
const Dataset = `<?xml version="1.0" encoding="UTF-8"?>
<ddm:DDM xmlns:ddm="http://schemas.dans.knaw.nl/dataset/ddm-v2/"
         xmlns:dc="http://purl.org/dc/elements/1.1/"
         xmlns:dcterms="http://purl.org/dc/terms/"
         xmlns:dcx-dai="http://easy.dans.knaw.nl/schemas/dcx/dai/"
         xmlns:id-type="http://easy.dans.knaw.nl/schemas/vocab/identifier-type/"
         xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <ddm:profile>
        <dc:title>A test dataset</dc:title>
        <dcterms:description>Used for testing</dcterms:description>
        <dcx-dai:creatorDetails>
            <dcx-dai:author>
                <dcx-dai:initials>J</dcx-dai:initials>
                <dcx-dai:surname>Doe</dcx-dai:surname>
                <dcx-dai:DAI>info:eu-repo/dai/nl/071935673</dcx-dai:DAI>
                <dcx-dai:ORCID>https://orcid.org/0000-0002-1825-0097</dcx-dai:ORCID>
                <dcx-dai:ISNI>http://isni.org/isni/0000000121032683</dcx-dai:ISNI>
            </dcx-dai:author>
        </dcx-dai:creatorDetails>
        <ddm:created>2023-04-30</ddm:created>
        <ddm:available>2023-05-01</ddm:available>
        <ddm:audience>D24000</ddm:audience>
        <ddm:accessRights>OPEN_ACCESS</ddm:accessRights>
    </ddm:profile>
    <ddm:dcmiMetadata>
        <dcterms:identifier xsi:type="id-type:DOI">10.17026/dans-z6y-5y2e</dcterms:identifier>
        <dcterms:license xsi:type="dcterms:URI">http://creativecommons.org/licenses/by/4.0</dcterms:license>
    </ddm:dcmiMetadata>
</ddm:DDM>
`

// Files creates a files.xml listing the given bag-relative paths
func Files(paths ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<files xmlns="http://easy.dans.knaw.nl/schemas/bag/metadata/files/" xmlns:dcterms="http://purl.org/dc/terms/">` + "\n")
	for _, p := range paths {
		fmt.Fprintf(&sb, "    <file filepath=%q>\n        <dcterms:format>text/plain</dcterms:format>\n    </file>\n", p)
	}
	sb.WriteString("</files>\n")
	return sb.String()
}

// Builder describes a bag to create
type Builder struct {
	t       testing.TB
	files   map[string]string
	info    []metadata.Tag
	algs    []metadata.DigestAlgorithm
	after   []func(dir string)
	dir     string
	noFiles bool
}

// New describes a bag with two payload files and valid metadata
func New(t testing.TB) *Builder {
	return &Builder{
		t: t,
		files: map[string]string{
			"data/file1.txt":        "Hello, world\n",
			"data/subdir/file2.txt": "Second file\n",
			DatasetXML:              Dataset,
		},
		info: []metadata.Tag{
			{Label: "Created", Value: "2023-05-01T10:00:00+02:00"},
		},
	}
}

// Empty describes a bag with nothing but the files a bag writer always creates
func Empty(t testing.TB) *Builder {
	return &Builder{t: t, files: map[string]string{}, noFiles: true}
}

// With adds or replaces a file before the bag is committed, so it is part of the manifests
func (b *Builder) With(rel, content string) *Builder {
	b.files[rel] = content
	return b
}

// Without removes a file.  Files the builder wrote itself are left out of the bag; anything
// else (bagit.txt, manifests, directories) is deleted after the bag is committed.
func (b *Builder) Without(rel string) *Builder {
	if _, ok := b.files[rel]; ok {
		delete(b.files, rel)
		return b
	}
	return b.Remove(rel)
}

// Remove deletes a file or directory after the bag is committed, so the manifests still
// list whatever was removed
func (b *Builder) Remove(rel string) *Builder {
	return b.After(func(dir string) {
		if err := os.RemoveAll(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			b.t.Fatalf("could not remove %s: %v", rel, err)
		}
	})
}

// Overwrite replaces the content of a file after the bag is committed, so it no longer
// matches the manifests
func (b *Builder) Overwrite(rel, content string) *Builder {
	return b.After(func(dir string) {
		write(b.t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	})
}

// Info replaces the values of a bag-info.txt label.  No values removes the label.
func (b *Builder) Info(label string, values ...string) *Builder {
	kept := b.info[:0]
	for _, t := range b.info {
		if t.Label != label {
			kept = append(kept, t)
		}
	}
	b.info = kept
	for _, v := range values {
		b.info = append(b.info, metadata.Tag{Label: label, Value: v})
	}
	return b
}

// Migration adds what the migration variant of the profile requires
func (b *Builder) Migration() *Builder {
	return b.Info("Data-Station-User-Account", "user001")
}

// Algorithms sets the manifest algorithms (sha1 by default)
func (b *Builder) Algorithms(algs ...metadata.DigestAlgorithm) *Builder {
	b.algs = algs
	return b
}

// After registers a function that modifies the bag directory after it is committed
func (b *Builder) After(f func(dir string)) *Builder {
	b.after = append(b.after, f)
	return b
}

// Dir creates the bag (once), and returns its directory
func (b *Builder) Dir() string {
	b.t.Helper()
	if b.dir != "" {
		return b.dir
	}

	dir := filepath.Join(b.t.TempDir(), "bag")
	w, err := bag.Create(dir, b.algs...)
	if err != nil {
		b.t.Fatalf("could not create bag: %+v", err)
	}

	var payload []string
	for rel := range b.files {
		if strings.HasPrefix(rel, metadata.PayloadDir+"/") {
			payload = append(payload, rel)
		}
	}
	sort.Strings(payload)
	if _, ok := b.files[FilesXML]; !ok && !b.noFiles {
		b.files[FilesXML] = Files(payload...)
	}

	var names []string
	for rel := range b.files {
		names = append(names, rel)
	}
	sort.Strings(names)
	for _, rel := range names {
		if err := w.Put(rel, strings.NewReader(b.files[rel])); err != nil {
			b.t.Fatalf("could not write %s: %+v", rel, err)
		}
	}

	labels := make(map[string][]string)
	var order []string
	for _, t := range b.info {
		if _, ok := labels[t.Label]; !ok {
			order = append(order, t.Label)
		}
		labels[t.Label] = append(labels[t.Label], t.Value)
	}
	for _, label := range order {
		w.SetInfo(label, labels[label]...)
	}

	if err := w.Commit(Date); err != nil {
		b.t.Fatalf("could not commit bag: %+v", err)
	}

	for _, f := range b.after {
		f(w.Dir())
	}

	b.dir = w.Dir()
	return b.dir
}

// Open creates the bag and opens it
func (b *Builder) Open() *bag.Bag {
	b.t.Helper()
	opened, err := bag.Open(b.Dir())
	if err != nil {
		b.t.Fatalf("could not open bag: %+v", err)
	}
	return opened
}

func write(t testing.TB, path, content string) {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		t.Fatalf("could not create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0664); err != nil {
		t.Fatalf("could not write %s: %v", path, err)
	}
}
