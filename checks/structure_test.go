package checks_test

import (
	"context"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/checks"
	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, c dansbag.Check, b *bag.Bag) dansbag.Outcome {
	t.Helper()
	out, err := c.Check(context.Background(), b)
	require.NoError(t, err)
	return out
}

func TestFileExists(t *testing.T) {
	b := bagtest.New(t).Open()

	assert.Equal(t, dansbag.Satisfied, check(t, checks.FileExists("bagit.txt"), b).Status)

	out := check(t, checks.FileExists("nope.txt"), b)
	assert.Equal(t, dansbag.Violated, out.Status)
	assert.Equal(t, []string{"nope.txt is missing"}, out.Messages)

	out = check(t, checks.FileExists("data"), b)
	assert.Equal(t, dansbag.Violated, out.Status)
	assert.Contains(t, out.Messages[0], "not a regular file")
}

func TestDirectoryExists(t *testing.T) {
	b := bagtest.New(t).Open()

	assert.Equal(t, dansbag.Satisfied, check(t, checks.DirectoryExists("data"), b).Status)
	assert.Equal(t, dansbag.Satisfied, check(t, checks.DirectoryExists("metadata"), b).Status)
	assert.Equal(t, dansbag.Violated, check(t, checks.DirectoryExists("data/file1.txt"), b).Status)

	out := check(t, checks.DirectoryExists("data"), bagtest.New(t).Without("data").Open())
	assert.Equal(t, []string{"directory data is missing"}, out.Messages)
}

func TestDeclaration(t *testing.T) {
	cases := []struct {
		name        string
		declaration string
		status      dansbag.Status
		message     string
	}{
		{
			name:        "current",
			declaration: "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n",
			status:      dansbag.Satisfied,
		},
		{
			name:        "previous",
			declaration: "BagIt-Version: 0.97\nTag-File-Character-Encoding: utf-8\n",
			status:      dansbag.Satisfied,
		},
		{
			name:        "tooOld",
			declaration: "BagIt-Version: 0.96\nTag-File-Character-Encoding: UTF-8\n",
			status:      dansbag.Violated,
			message:     "BagIt-Version 0.96 is not supported (expected 0.97 or 1.0)",
		},
		{
			name:        "tooNew",
			declaration: "BagIt-Version: 2.0\nTag-File-Character-Encoding: UTF-8\n",
			status:      dansbag.Violated,
			message:     "BagIt-Version 2.0 is not supported (expected 0.97 or 1.0)",
		},
		{
			name:        "notAVersion",
			declaration: "BagIt-Version: one\nTag-File-Character-Encoding: UTF-8\n",
			status:      dansbag.Violated,
			message:     `BagIt-Version "one" is not a version number`,
		},
		{
			name:        "noVersion",
			declaration: "Tag-File-Character-Encoding: UTF-8\n",
			status:      dansbag.Violated,
			message:     "BagIt-Version is missing",
		},
		{
			name:        "latin1",
			declaration: "BagIt-Version: 1.0\nTag-File-Character-Encoding: ISO-8859-1\n",
			status:      dansbag.Violated,
			message:     `Tag-File-Character-Encoding must be UTF-8, not "ISO-8859-1"`,
		},
		{
			name:        "garbage",
			declaration: "this is not a tag file\n",
			status:      dansbag.Violated,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			b := bagtest.New(t).Overwrite("bagit.txt", c.declaration).Open()

			out := check(t, checks.Declaration(), b)
			assert.Equal(t, c.status, out.Status, "%v", out.Messages)
			if c.message != "" {
				assert.Equal(t, []string{c.message}, out.Messages)
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		out := check(t, checks.Declaration(), bagtest.New(t).Without("bagit.txt").Open())
		assert.Equal(t, []string{"bagit.txt is missing"}, out.Messages)
	})
}

func TestOnlyAllowed(t *testing.T) {
	allowed := checks.OnlyAllowed("metadata", "dataset.xml", "files.xml", "attachments/")

	assert.Equal(t, dansbag.Satisfied, check(t, allowed, bagtest.New(t).Open()).Status)

	b := bagtest.New(t).
		With("metadata/notes.txt", "notes").
		With("metadata/attachments/a.pdf", "pdf").
		With("metadata/other/b.xml", "<b/>").
		Open()

	out := check(t, allowed, b)
	assert.Equal(t, dansbag.Violated, out.Status)
	assert.Equal(t, []string{
		"notes.txt is not allowed in metadata/",
		"other is not allowed in metadata/",
	}, out.Messages)
}
