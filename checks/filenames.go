package checks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// ForbiddenCharacters may not appear in payload file names deposited through the
// deposit interface
const ForbiddenCharacters = `:*?"<>|;#`

// NoForbiddenCharacters requires payload paths to be free of ForbiddenCharacters and
// control characters
func NoForbiddenCharacters() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var problems []string
		for _, f := range payload {
			if bad := forbidden(f.Path); bad != "" {
				problems = append(problems, fmt.Sprintf("%q contains forbidden characters %s", f.Path, bad))
			}
		}
		return dansbag.Collect(problems), nil
	})
}

func forbidden(p string) string {
	var found []string
	seen := make(map[rune]bool)
	for _, r := range p {
		if seen[r] || !(strings.ContainsRune(ForbiddenCharacters, r) || unicode.IsControl(r)) {
			continue
		}
		seen[r] = true
		found = append(found, fmt.Sprintf("%q", r))
	}
	return strings.Join(found, " ")
}

// NormalizedFilenames requires payload paths to be in Unicode normalization form C
func NormalizedFilenames() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var problems []string
		for _, f := range payload {
			if !norm.NFC.IsNormalString(f.Path) {
				problems = append(problems, fmt.Sprintf("%q is not in Unicode normalization form C", f.Path))
			}
		}
		return dansbag.Collect(problems), nil
	})
}

// NoSpecialFiles requires the payload to consist of regular files only: no symbolic
// links, devices, pipes or sockets
func NoSpecialFiles() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var problems []string
		for _, f := range payload {
			info, err := b.Stat(f.Path)
			if err != nil {
				return dansbag.Outcome{}, errors.Wrapf(err, "could not stat %s", f.Path)
			}
			if !info.Mode().IsRegular() {
				problems = append(problems, fmt.Sprintf("%s is a %s, not a regular file", f.Path, kind(info.Mode())))
			}
		}
		return dansbag.Collect(problems), nil
	})
}

func kind(m os.FileMode) string {
	switch {
	case m&os.ModeSymlink != 0:
		return "symbolic link"
	case m&os.ModeNamedPipe != 0:
		return "named pipe"
	case m&os.ModeSocket != 0:
		return "socket"
	case m&os.ModeDevice != 0:
		return "device"
	case m.IsDir():
		return "directory"
	}
	return "special file"
}
