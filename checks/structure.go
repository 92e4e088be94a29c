package checks

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// BagItVersions are the versions of the BagIt specification a bag may declare
const BagItVersions = ">= 0.97.0, < 0.98.0 || >= 1.0.0, < 1.1.0"

var supportedVersions = mustConstraint(BagItVersions)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// FileExists requires a regular file at the bag-relative path
func FileExists(rel string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		info, err := b.Stat(rel)
		switch {
		case bag.NotFound(err):
			return dansbag.Failf("%s is missing", rel), nil
		case err != nil:
			return dansbag.Outcome{}, errors.Wrapf(err, "could not stat %s", rel)
		case !info.Mode().IsRegular():
			return dansbag.Failf("%s is not a regular file", rel), nil
		}
		return dansbag.Pass(), nil
	})
}

// DirectoryExists requires a directory at the bag-relative path
func DirectoryExists(rel string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		info, err := b.Stat(rel)
		switch {
		case bag.NotFound(err):
			return dansbag.Failf("directory %s is missing", rel), nil
		case err != nil:
			return dansbag.Outcome{}, errors.Wrapf(err, "could not stat %s", rel)
		case !info.IsDir():
			return dansbag.Failf("%s is not a directory", rel), nil
		}
		return dansbag.Pass(), nil
	})
}

// Declaration requires a bagit.txt declaring a supported BagIt version and UTF-8 tag files
func Declaration() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		decl, err := b.Declaration()
		if bag.NotFound(err) {
			return dansbag.Failf("%s is missing", metadata.DeclarationFile), nil
		}
		if err != nil {
			return dansbag.Failf("%s is not a valid tag file: %s", metadata.DeclarationFile, errors.Cause(err)), nil
		}

		var problems []string
		if decl.Version == "" {
			problems = append(problems, "BagIt-Version is missing")
		} else if v, err := semver.NewVersion(decl.Version); err != nil {
			problems = append(problems, fmt.Sprintf("BagIt-Version %q is not a version number", decl.Version))
		} else if !supportedVersions.Check(v) {
			problems = append(problems, fmt.Sprintf("BagIt-Version %s is not supported (expected 0.97 or 1.0)", decl.Version))
		}

		if !strings.EqualFold(decl.Encoding, "UTF-8") {
			problems = append(problems, fmt.Sprintf("Tag-File-Character-Encoding must be UTF-8, not %q", decl.Encoding))
		}
		return dansbag.Collect(problems), nil
	})
}

// OnlyAllowed requires that a directory contains nothing but the given names.  Names ending
// in a slash must be directories.
func OnlyAllowed(dir string, allowed ...string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		files := make(map[string]bool)
		dirs := make(map[string]bool)
		for _, a := range allowed {
			if strings.HasSuffix(a, "/") {
				dirs[strings.TrimSuffix(a, "/")] = true
			} else {
				files[a] = true
			}
		}

		var problems []string
		err := b.Walk(dir, func(rel string, e *godirwalk.Dirent) (bool, error) {
			name := strings.TrimPrefix(rel, dir+"/")
			switch {
			case e.IsDir() && dirs[name]:
			case !e.IsDir() && files[name]:
			default:
				problems = append(problems, fmt.Sprintf("%s is not allowed in %s/", path.Base(rel), dir))
			}
			return true, nil
		})
		if err != nil {
			return dansbag.Outcome{}, err
		}

		sort.Strings(problems)
		return dansbag.Collect(problems), nil
	})
}
