package bag_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/birkland/dansbag/metadata"
	"github.com/go-test/deep"
)

func TestDigest(t *testing.T) {
	b := bagtest.New(t).Open()

	for _, alg := range []metadata.DigestAlgorithm{metadata.MD5, metadata.SHA1, metadata.SHA256, metadata.SHA512} {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			h, _ := bag.NewHash(alg)
			_, _ = h.Write([]byte("Hello, world\n"))

			digest, err := b.Digest("data/file1.txt", alg)
			if err != nil {
				t.Fatal(err)
			}
			if string(digest) != hex.EncodeToString(h.Sum(nil)) {
				t.Errorf("wrong digest %s", digest)
			}
		})
	}

	if _, err := b.Digest("data/file1.txt", "crc32"); err == nil {
		t.Errorf("expected an unsupported algorithm")
	}
}

func TestVerify(t *testing.T) {
	b := bagtest.New(t).
		Overwrite("data/file1.txt", "tampered").
		Remove("data/subdir/file2.txt").
		Open()

	m, err := b.Manifest(metadata.SHA1)
	if err != nil {
		t.Fatal(err)
	}
	index := m.Index()
	tampered, _ := b.Digest("data/file1.txt", metadata.SHA1)

	for _, workers := range []int{0, 1, 4} {
		mismatches, err := b.Verify(context.Background(), m, metadata.SHA1, workers)
		if err != nil {
			t.Fatal(err)
		}

		expected := []bag.Mismatch{
			{Path: "data/file1.txt", Expected: index["data/file1.txt"], Actual: tampered},
			{Path: "data/subdir/file2.txt", Expected: index["data/subdir/file2.txt"]},
		}
		if diff := deep.Equal(expected, mismatches); diff != nil {
			t.Errorf("%d workers: %s", workers, diff)
		}
	}

	if expected := "data/subdir/file2.txt is listed in the manifest but missing"; (bag.Mismatch{Path: "data/subdir/file2.txt", Expected: "x"}).String() != expected {
		t.Errorf("unexpected message")
	}
}

func TestVerifyCancelled(t *testing.T) {
	b := bagtest.New(t).Open()
	m, _ := b.Manifest(metadata.SHA1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Verify(ctx, m, metadata.SHA1, 1); err == nil {
		t.Errorf("expected verification to be cancelled")
	}
}
