package bag

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/birkland/dansbag/metadata"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

const (
	dontGoDeeper = true
	goDeeper     = false
)

// PayloadFile is a regular file found under the payload directory
type PayloadFile struct {
	Path string // bag-relative, solidus delimited, e.g. data/foo/bar.txt
	Size int64
}

// Payload lists every file under data/, sorted by path.  Symbolic links and other
// special files are listed too (with a zero size), so that checks can complain about them.
func (b *Bag) Payload() ([]PayloadFile, error) {
	v, err := b.docs.Load("list:"+metadata.PayloadDir+"/", func() (interface{}, error) {
		var files []PayloadFile

		err := b.Walk(metadata.PayloadDir, func(rel string, e *godirwalk.Dirent) (bool, error) {
			if e.IsDir() {
				return goDeeper, nil
			}

			var size int64
			if e.IsRegular() {
				info, err := os.Lstat(b.Abs(rel))
				if err != nil {
					return dontGoDeeper, errors.Wrapf(err, "could not stat %s", rel)
				}
				size = info.Size()
			}

			files = append(files, PayloadFile{Path: rel, Size: size})
			return dontGoDeeper, nil
		})
		if err != nil {
			return nil, err
		}

		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PayloadFile), nil
}

// WalkFunc is invoked each time a fs entry is encountered during a Walk, with its
// bag-relative path.  Returns a Boolean indicating whether the current fs entry should be a
// considered a terminal (leaf) node.  If true, any children will not be
// walked.  Any error will terminate a walk entirely.
type WalkFunc func(rel string, e *godirwalk.Dirent) (terminal bool, err error)

// Walk visits everything below the bag-relative directory (but not the directory itself)
func (b *Bag) Walk(dir string, f WalkFunc) error {
	start := b.Abs(dir)

	return fsWalk(start, func(ospath string, e *godirwalk.Dirent) (bool, error) {
		if ospath == start {
			return goDeeper, nil
		}

		rel, err := filepath.Rel(b.Path, ospath)
		if err != nil {
			return dontGoDeeper, errors.Wrapf(err, "%s is not inside %s", ospath, b.Path)
		}
		return f(filepath.ToSlash(rel), e)
	})
}

type skip struct {
	action godirwalk.ErrorAction
}

func (skip) Error() string {
	return "node is skipped"
}

// Callback to be invoked each time a fs entry is encountered.
// Returns a Boolean indicating whether the current fs entry should be a
// considered a terminal (leaf) node.  If true, any children will not be
// walked.  Any error will terminate a walk entirely.
type fsCallback func(ospath string, e *godirwalk.Dirent) (terminal bool, err error)

func fsWalk(dir string, f fsCallback) error {

	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(err, "error walking directory %s", dir)
	}

	return godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(ospath string, dirent *godirwalk.Dirent) error {
			terminal, err := f(ospath, dirent)
			if err != nil {
				return errors.Wrap(err, "terminating walk due to error")
			}
			if terminal && dirent.IsDir() {
				return skip{godirwalk.SkipNode}
			}
			return nil
		},
		ErrorCallback: func(ospath string, err error) godirwalk.ErrorAction {
			s, skip := errors.Cause(err).(skip)
			if skip {
				return s.action
			}

			return godirwalk.Halt
		},
		Unsorted:            true,
		FollowSymbolicLinks: false,
	},
	)
}
