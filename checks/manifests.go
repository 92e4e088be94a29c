package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// payloadManifests loads every payload manifest, keyed by algorithm
func payloadManifests(b *bag.Bag) ([]metadata.DigestAlgorithm, map[metadata.DigestAlgorithm]metadata.Manifest, error) {
	algs, err := b.ManifestAlgorithms()
	if err != nil {
		return nil, nil, err
	}

	manifests := make(map[metadata.DigestAlgorithm]metadata.Manifest, len(algs))
	for _, alg := range algs {
		m, err := b.Manifest(alg)
		if err != nil {
			return nil, nil, err
		}
		manifests[alg] = m
	}
	return algs, manifests, nil
}

// ManifestsValid requires at least one payload manifest, and every payload manifest to
// be internally consistent
func ManifestsValid() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		algs, err := b.ManifestAlgorithms()
		if err != nil {
			return dansbag.Outcome{}, err
		}
		if len(algs) == 0 {
			return dansbag.Fail("bag has no payload manifest"), nil
		}

		var problems []string
		for _, alg := range algs {
			m, err := b.Manifest(alg)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %s", metadata.ManifestFile(alg), errors.Cause(err)))
				continue
			}
			if !alg.Supported() {
				problems = append(problems, fmt.Sprintf("%s uses unsupported algorithm %s", metadata.ManifestFile(alg), alg))
				continue
			}
			if inconsistent := validate(m, alg, metadata.ManifestFile); len(inconsistent) > 0 {
				problems = append(problems, inconsistent...)
				continue
			}
			for _, p := range m.Paths() {
				if !strings.HasPrefix(p, metadata.PayloadDir+"/") {
					problems = append(problems, fmt.Sprintf("%s: %s is not a payload file", metadata.ManifestFile(alg), p))
				}
			}
		}
		return dansbag.Collect(problems), nil
	})
}

// RequiredManifest requires a payload manifest for the given algorithm
func RequiredManifest(alg metadata.DigestAlgorithm) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		algs, err := b.ManifestAlgorithms()
		if err != nil {
			return dansbag.Outcome{}, err
		}
		for _, a := range algs {
			if a == alg {
				return dansbag.Pass(), nil
			}
		}
		return dansbag.Failf("bag must have a %s", metadata.ManifestFile(alg)), nil
	})
}

// ManifestsComplete requires every payload file to be listed in every payload manifest
func ManifestsComplete() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		algs, manifests, err := payloadManifests(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var problems []string
		for _, alg := range algs {
			index := manifests[alg].Index()
			for _, f := range payload {
				if _, ok := index[f.Path]; !ok {
					problems = append(problems, fmt.Sprintf("%s is not listed in %s", f.Path, metadata.ManifestFile(alg)))
				}
			}
		}
		return dansbag.Collect(problems), nil
	})
}

// Fixity recomputes the digest of every file in every payload manifest
func Fixity(workers int) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		algs, manifests, err := payloadManifests(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		return verify(ctx, b, algs, manifests, metadata.ManifestFile, workers)
	})
}

// TagManifests requires any tag manifests present to be internally consistent, and to
// match the tag files they list.  A bag without tag manifests makes the rule inapplicable.
func TagManifests(workers int) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		algs, err := b.TagManifestAlgorithms()
		if err != nil {
			return dansbag.Outcome{}, err
		}
		if len(algs) == 0 {
			return dansbag.NotApplicable("bag has no tag manifests"), nil
		}

		var problems []string
		manifests := make(map[metadata.DigestAlgorithm]metadata.Manifest, len(algs))
		for _, alg := range algs {
			m, err := b.TagManifest(alg)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %s", metadata.TagManifestFile(alg), errors.Cause(err)))
				continue
			}
			if inconsistent := validate(m, alg, metadata.TagManifestFile); len(inconsistent) > 0 {
				problems = append(problems, inconsistent...)
				continue
			}
			manifests[alg] = m
		}
		if len(problems) > 0 {
			return dansbag.Fail(problems...), nil
		}

		return verify(ctx, b, algs, manifests, metadata.TagManifestFile, workers)
	})
}

func validate(m metadata.Manifest, alg metadata.DigestAlgorithm, name func(metadata.DigestAlgorithm) string) []string {
	err := m.Validate(alg)
	if err == nil {
		return nil
	}

	merr, ok := err.(*metadata.ManifestError)
	if !ok {
		return []string{fmt.Sprintf("%s: %s", name(alg), err)}
	}
	problems := make([]string, 0, len(merr.Problems))
	for _, p := range merr.Problems {
		problems = append(problems, fmt.Sprintf("%s: %s", name(alg), p))
	}
	return problems
}

func verify(ctx context.Context, b *bag.Bag, algs []metadata.DigestAlgorithm,
	manifests map[metadata.DigestAlgorithm]metadata.Manifest, name func(metadata.DigestAlgorithm) string, workers int) (dansbag.Outcome, error) {

	var problems []string
	for _, alg := range algs {
		mismatches, err := b.Verify(ctx, manifests[alg], alg, workers)
		if err != nil {
			return dansbag.Outcome{}, errors.Wrapf(err, "could not verify %s", name(alg))
		}
		for _, m := range mismatches {
			problems = append(problems, fmt.Sprintf("%s: %s", name(alg), m))
		}
	}
	return dansbag.Collect(problems), nil
}

// PayloadOxum requires the Payload-Oxum element of bag-info.txt, if present, to match the
// octet count and the number of files in the payload
func PayloadOxum() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		oxum, ok := tags.First("Payload-Oxum")
		if !ok {
			return dansbag.NotApplicable("no Payload-Oxum in bag-info.txt"), nil
		}

		parts := strings.Split(oxum, ".")
		if len(parts) != 2 {
			return dansbag.Failf("Payload-Oxum %q is not of the form <octets>.<files>", oxum), nil
		}
		octets, err1 := strconv.ParseInt(parts[0], 10, 64)
		count, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || octets < 0 || count < 0 {
			return dansbag.Failf("Payload-Oxum %q is not of the form <octets>.<files>", oxum), nil
		}

		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}
		var actual int64
		for _, f := range payload {
			actual += f.Size
		}

		var problems []string
		if actual != octets {
			problems = append(problems, fmt.Sprintf("Payload-Oxum claims %s (%d bytes), payload holds %s (%d bytes)",
				humanize.Bytes(uint64(octets)), octets, humanize.Bytes(uint64(actual)), actual))
		}
		if len(payload) != count {
			problems = append(problems, fmt.Sprintf("Payload-Oxum claims %s files, payload holds %s",
				humanize.Comma(int64(count)), humanize.Comma(int64(len(payload)))))
		}
		return dansbag.Collect(problems), nil
	})
}
