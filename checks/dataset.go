package checks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
	"github.com/pkg/errors"
)

// Namespaces of the metadata documents
const (
	DDMNamespace   = "http://schemas.dans.knaw.nl/dataset/ddm-v2/"
	FilesNamespace = "http://easy.dans.knaw.nl/schemas/bag/metadata/files/"
)

// Date layouts accepted for date elements, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func document(b *bag.Bag, rel string) (*metadata.Node, error) {
	root, err := b.XML(rel)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", rel)
	}
	return root, nil
}

// XMLRoot requires a well-formed XML document at the bag-relative path, with the given
// root element.  An empty namespace matches any.
func XMLRoot(rel, space, name string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := b.XML(rel)
		switch {
		case bag.NotFound(err):
			return dansbag.Failf("%s is missing", rel), nil
		case err != nil:
			return dansbag.Failf("%s is not well-formed: %s", rel, errors.Cause(err)), nil
		case root.Name != name || (space != "" && root.Space != space):
			return dansbag.Failf("root element of %s must be %s in namespace %s, found %s in %q", rel, name, space, root.Name, root.Space), nil
		}
		return dansbag.Pass(), nil
	})
}

// Count requires the number of elements found at path (see metadata.Node.FindAll) to lie
// between min and max.  A negative max means unbounded.
func Count(rel, path string, min, max int) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var found int
		for _, n := range root.FindAll(path) {
			if n.Text() != "" || len(n.Children) > 0 {
				found++
			}
		}

		switch {
		case found < min && min == max:
			return dansbag.Failf("%s must contain exactly %d %s element(s), found %d", rel, min, last(path), found), nil
		case found < min:
			return dansbag.Failf("%s must contain at least %d %s element(s), found %d", rel, min, last(path), found), nil
		case max >= 0 && found > max:
			return dansbag.Failf("%s may contain at most %d %s element(s), found %d", rel, max, last(path), found), nil
		}
		return dansbag.Pass(), nil
	})
}

func last(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// Date requires exactly one element at path, holding an ISO 8601 date
func Date(rel, path string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		nodes := root.FindAll(path)
		if len(nodes) != 1 {
			return dansbag.Failf("%s must contain exactly one %s element, found %d", rel, last(path), len(nodes)), nil
		}

		text := nodes[0].Text()
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, text); err == nil {
				return dansbag.Pass(), nil
			}
		}
		return dansbag.Failf("%s %q in %s is not an ISO 8601 date", last(path), text, rel), nil
	})
}

// Vocabulary requires exactly one element at path, holding one of the given values
func Vocabulary(rel, path string, values ...string) dansbag.Check {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}

	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		nodes := root.FindAll(path)
		if len(nodes) != 1 {
			return dansbag.Failf("%s must contain exactly one %s element, found %d", rel, last(path), len(nodes)), nil
		}
		if v := nodes[0].Text(); !allowed[v] {
			return dansbag.Failf("%s %q is not one of %s", last(path), v, strings.Join(values, ", ")), nil
		}
		return dansbag.Pass(), nil
	})
}

// AccessRights are the values allowed for ddm:accessRights
var AccessRights = []string{
	"OPEN_ACCESS",
	"OPEN_ACCESS_FOR_REGISTERED_USERS",
	"REQUEST_PERMISSION",
	"NO_ACCESS",
}

// License requires exactly one license element in the dcmiMetadata, holding an absolute
// http(s) URI
func License(rel string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		nodes := root.FindAll("dcmiMetadata/license")
		if len(nodes) != 1 {
			return dansbag.Failf("%s must contain exactly one license, found %d", rel, len(nodes)), nil
		}

		text := nodes[0].Text()
		u, err := url.Parse(text)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return dansbag.Failf("license %q is not an http(s) URI", text), nil
		}
		return dansbag.Pass(), nil
	})
}

// describe formats a count for messages
func describe(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
