package checks_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/checks"
	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/birkland/dansbag/metadata"
	"github.com/stretchr/testify/assert"
)

func TestManifestsValid(t *testing.T) {
	digest := strings.Repeat("a", 40)

	cases := []struct {
		name     string
		builder  func(t *testing.T) *bagtest.Builder
		status   dansbag.Status
		messages []string
	}{
		{
			name:    "valid",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t)
			},
			status:  dansbag.Satisfied,
		},
		{
			name: "none",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t).Without("manifest-sha1.txt")
			},
			status:   dansbag.Violated,
			messages: []string{"bag has no payload manifest"},
		},
		{
			name: "malformed",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t).Overwrite("manifest-sha1.txt", "garbage\n")
			},
			status:   dansbag.Violated,
			messages: []string{`manifest-sha1.txt: malformed manifest line 1: "garbage"`},
		},
		{
			name: "badDigest",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t).Overwrite("manifest-sha1.txt", "abc  data/file1.txt\n")
			},
			status:   dansbag.Violated,
			messages: []string{`manifest-sha1.txt: digest "abc" is not a valid sha1 value`},
		},
		{
			name: "notPayload",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t).Overwrite("manifest-sha1.txt", digest+"  metadata/dataset.xml\n")
			},
			status:   dansbag.Violated,
			messages: []string{"manifest-sha1.txt: metadata/dataset.xml is not a payload file"},
		},
		{
			name: "unsupported",
			builder: func(t *testing.T) *bagtest.Builder {
				return bagtest.New(t).Overwrite("manifest-crc32.txt", "abcd  data/file1.txt\n")
			},
			status:   dansbag.Violated,
			messages: []string{"manifest-crc32.txt uses unsupported algorithm crc32"},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			out := check(t, checks.ManifestsValid(), c.builder(t).Open())
			assert.Equal(t, c.status, out.Status, "%v", out.Messages)
			assert.Equal(t, c.messages, out.Messages)
		})
	}
}

func TestRequiredManifest(t *testing.T) {
	assert.Equal(t, dansbag.Satisfied, check(t, checks.RequiredManifest(metadata.SHA1), bagtest.New(t).Open()).Status)

	b := bagtest.New(t).Algorithms(metadata.SHA256).Open()
	out := check(t, checks.RequiredManifest(metadata.SHA1), b)
	assert.Equal(t, []string{"bag must have a manifest-sha1.txt"}, out.Messages)
}

func TestManifestsComplete(t *testing.T) {
	assert.Equal(t, dansbag.Satisfied, check(t, checks.ManifestsComplete(), bagtest.New(t).Open()).Status)

	b := bagtest.New(t).
		Algorithms(metadata.SHA1, metadata.SHA256).
		Overwrite("data/unlisted.txt", "sneaked in").
		Open()

	out := check(t, checks.ManifestsComplete(), b)
	assert.Equal(t, []string{
		"data/unlisted.txt is not listed in manifest-sha1.txt",
		"data/unlisted.txt is not listed in manifest-sha256.txt",
	}, out.Messages)
}

func TestFixity(t *testing.T) {
	assert.Equal(t, dansbag.Satisfied, check(t, checks.Fixity(2), bagtest.New(t).Open()).Status)

	b := bagtest.New(t).
		Overwrite("data/file1.txt", "tampered").
		After(func(dir string) {
			if err := os.Remove(filepath.Join(dir, "data", "subdir", "file2.txt")); err != nil {
				t.Fatal(err)
			}
		}).
		Open()

	out := check(t, checks.Fixity(2), b)
	assert.Equal(t, dansbag.Violated, out.Status)
	if assert.Len(t, out.Messages, 2) {
		assert.True(t, strings.HasPrefix(out.Messages[0], "manifest-sha1.txt: data/file1.txt has checksum"), out.Messages[0])
		assert.Equal(t, "manifest-sha1.txt: data/subdir/file2.txt is listed in the manifest but missing", out.Messages[1])
	}
}

func TestTagManifests(t *testing.T) {
	assert.Equal(t, dansbag.Satisfied, check(t, checks.TagManifests(1), bagtest.New(t).Open()).Status)

	out := check(t, checks.TagManifests(1), bagtest.New(t).Without("tagmanifest-sha1.txt").Open())
	assert.Equal(t, dansbag.Inapplicable, out.Status)

	out = check(t, checks.TagManifests(1), bagtest.New(t).Overwrite("bag-info.txt", "Created: 2023-05-01T10:00:00Z\n").Open())
	assert.Equal(t, dansbag.Violated, out.Status)
	if assert.Len(t, out.Messages, 1) {
		assert.True(t, strings.HasPrefix(out.Messages[0], "tagmanifest-sha1.txt: bag-info.txt has checksum"), out.Messages[0])
	}

	out = check(t, checks.TagManifests(1), bagtest.New(t).Overwrite("tagmanifest-sha1.txt", "xyz  bagit.txt\n").Open())
	assert.Equal(t, dansbag.Violated, out.Status)
	assert.Contains(t, out.Messages[0], `digest "xyz" is not a valid sha1 value`)
}

func TestPayloadOxum(t *testing.T) {
	cases := []struct {
		name     string
		oxum     string
		status   dansbag.Status
		messages []string
	}{
		{
			name:   "matches",
			oxum:   "25.2",
			status: dansbag.Satisfied,
		},
		{
			name:     "octets",
			oxum:     "26.2",
			status:   dansbag.Violated,
			messages: []string{"Payload-Oxum claims 26 B (26 bytes), payload holds 25 B (25 bytes)"},
		},
		{
			name:     "files",
			oxum:     "25.3",
			status:   dansbag.Violated,
			messages: []string{"Payload-Oxum claims 3 files, payload holds 2"},
		},
		{
			name:     "malformed",
			oxum:     "25",
			status:   dansbag.Violated,
			messages: []string{`Payload-Oxum "25" is not of the form <octets>.<files>`},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			out := check(t, checks.PayloadOxum(), bagtest.New(t).Info("Payload-Oxum", c.oxum).Open())
			assert.Equal(t, c.status, out.Status)
			assert.Equal(t, c.messages, out.Messages)
		})
	}

	t.Run("absent", func(t *testing.T) {
		b := bagtest.New(t).Overwrite("bag-info.txt", "Created: 2023-05-01T10:00:00Z\n").Open()
		assert.Equal(t, dansbag.Inapplicable, check(t, checks.PayloadOxum(), b).Status)
	})
}
