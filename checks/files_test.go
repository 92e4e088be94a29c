package checks_test

import (
	"strings"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/checks"
	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/stretchr/testify/assert"
)

func TestFilePaths(t *testing.T) {
	paths := checks.FilePaths(bagtest.FilesXML)

	assert.Equal(t, dansbag.Satisfied, check(t, paths, bagtest.New(t).Open()).Status)

	files := bagtest.Files("data/file1.txt", "data/file1.txt", "file3.txt", "data/subdir/file2.txt")
	files = strings.Replace(files, `<file filepath="data/subdir/file2.txt">`, `<file>`, 1)

	out := check(t, paths, bagtest.New(t).With(bagtest.FilesXML, files).Open())
	assert.Equal(t, []string{
		`filepath "data/file1.txt" is listed more than once in metadata/files.xml`,
		`filepath "file3.txt" in metadata/files.xml is not under data/`,
		"file element 4 of metadata/files.xml has no filepath",
	}, out.Messages)
}

func TestFilesMatchPayload(t *testing.T) {
	match := checks.FilesMatchPayload(bagtest.FilesXML)

	assert.Equal(t, dansbag.Satisfied, check(t, match, bagtest.New(t).Open()).Status)

	files := bagtest.Files("data/file1.txt", "data/ghost.txt")
	out := check(t, match, bagtest.New(t).With(bagtest.FilesXML, files).Open())
	assert.Equal(t, []string{
		"metadata/files.xml describes 2 files, payload holds 2 files",
		"data/subdir/file2.txt is not described in metadata/files.xml",
		"metadata/files.xml describes data/ghost.txt, which is not in the payload",
	}, out.Messages)
}

func TestFileRightsValues(t *testing.T) {
	accessible := checks.FileRightsValues(bagtest.FilesXML, "accessibleToRights")

	assert.Equal(t, dansbag.Inapplicable, check(t, accessible, bagtest.New(t).Open()).Status)

	rights := func(value string) string {
		return strings.Replace(bagtest.Files("data/file1.txt", "data/subdir/file2.txt"),
			"<dcterms:format>", "<accessibleToRights>"+value+"</accessibleToRights><dcterms:format>", 1)
	}

	for _, r := range checks.FileRights {
		out := check(t, accessible, bagtest.New(t).With(bagtest.FilesXML, rights(r)).Open())
		assert.Equal(t, dansbag.Satisfied, out.Status, r)
	}

	out := check(t, accessible, bagtest.New(t).With(bagtest.FilesXML, rights("EVERYONE")).Open())
	assert.Equal(t, []string{`accessibleToRights "EVERYONE" of data/file1.txt is not one of ANONYMOUS, KNOWN, RESTRICTED_REQUEST, NONE`}, out.Messages)
}
