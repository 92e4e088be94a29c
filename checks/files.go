package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
)

// FileRights are the values allowed for accessibleToRights and visibleToRights in files.xml
var FileRights = []string{
	"ANONYMOUS",
	"KNOWN",
	"RESTRICTED_REQUEST",
	"NONE",
}

func listed(root *metadata.Node) []*metadata.Node {
	return root.FindAll("file")
}

// FilePaths requires every file element of files.xml to have a filepath attribute
// naming a payload path, each path listed once
func FilePaths(rel string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var problems []string
		seen := make(map[string]int)
		for i, f := range listed(root) {
			p, ok := f.Attr("filepath")
			if !ok || p == "" {
				problems = append(problems, fmt.Sprintf("file element %d of %s has no filepath", i+1, rel))
				continue
			}
			if !strings.HasPrefix(p, metadata.PayloadDir+"/") {
				problems = append(problems, fmt.Sprintf("filepath %q in %s is not under %s/", p, rel, metadata.PayloadDir))
			}
			seen[p]++
			if seen[p] == 2 {
				problems = append(problems, fmt.Sprintf("filepath %q is listed more than once in %s", p, rel))
			}
		}
		return dansbag.Collect(problems), nil
	})
}

// FilesMatchPayload requires files.xml to describe exactly the files in the payload
func FilesMatchPayload(rel string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		payload, err := b.Payload()
		if err != nil {
			return dansbag.Outcome{}, err
		}

		described := make(map[string]bool)
		for _, f := range listed(root) {
			p, _ := f.Attr("filepath")
			described[p] = true
		}

		var problems []string
		present := make(map[string]bool, len(payload))
		for _, f := range payload {
			present[f.Path] = true
			if !described[f.Path] {
				problems = append(problems, fmt.Sprintf("%s is not described in %s", f.Path, rel))
			}
		}
		for _, f := range listed(root) {
			if p, _ := f.Attr("filepath"); !present[p] {
				problems = append(problems, fmt.Sprintf("%s describes %s, which is not in the payload", rel, p))
			}
		}

		if len(problems) > 0 {
			problems = append([]string{fmt.Sprintf("%s describes %s, payload holds %s",
				rel, describe(len(described), "file"), describe(len(payload), "file"))}, problems...)
		}
		return dansbag.Collect(problems), nil
	})
}

// FileRightsValues requires every element of the given name under a file element to hold
// one of FileRights.  A files.xml without such elements makes the rule inapplicable.
func FileRightsValues(rel, element string) dansbag.Check {
	allowed := make(map[string]bool, len(FileRights))
	for _, r := range FileRights {
		allowed[r] = true
	}

	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		var found int
		var problems []string
		for _, f := range listed(root) {
			for _, n := range f.FindAll(element) {
				found++
				if v := n.Text(); !allowed[v] {
					p, _ := f.Attr("filepath")
					problems = append(problems, fmt.Sprintf("%s %q of %s is not one of %s", element, v, p, strings.Join(FileRights, ", ")))
				}
			}
		}

		if found == 0 {
			return dansbag.NotApplicable(fmt.Sprintf("no %s in %s", element, rel)), nil
		}
		return dansbag.Collect(problems), nil
	})
}
