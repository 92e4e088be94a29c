package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
)

// Validator decides whether an identifier is well-formed
type Validator func(id string) bool

var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+$`)

// ValidDOI accepts a bare DOI, or one prefixed with a resolver or "doi:"
func ValidDOI(id string) bool {
	id = trimPrefixes(strings.TrimSpace(id), "https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:")
	return doiPattern.MatchString(id)
}

// ValidORCID accepts an ORCID iD, bare or as orcid.org URI
func ValidORCID(id string) bool {
	id = trimPrefixes(strings.TrimSpace(id), "https://orcid.org/", "http://orcid.org/")
	return iso7064(strings.ReplaceAll(id, "-", ""))
}

// ValidISNI accepts an ISNI, bare (spaces allowed) or as isni.org URI
func ValidISNI(id string) bool {
	id = trimPrefixes(strings.TrimSpace(id), "https://isni.org/isni/", "http://isni.org/isni/")
	return iso7064(strings.ReplaceAll(id, " ", ""))
}

// ValidDAI accepts a Dutch Digital Author Identifier, bare or prefixed with
// info:eu-repo/dai/nl/.  The last character is a mod 11 check digit.
func ValidDAI(id string) bool {
	id = trimPrefixes(strings.TrimSpace(id), "info:eu-repo/dai/nl/")
	if len(id) < 2 || len(id) > 10 {
		return false
	}

	body, check := id[:len(id)-1], id[len(id)-1]
	var sum int
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * (len(body) - i + 1)
	}

	var expected byte
	switch r := sum % 11; r {
	case 0:
		expected = '0'
	case 1:
		expected = 'X'
	default:
		expected = byte('0' + 11 - r)
	}
	return check == expected || (expected == 'X' && check == 'x')
}

// iso7064 validates sixteen characters whose last one is an ISO 7064 mod 11-2 check
// character (as used by ORCID and ISNI)
func iso7064(id string) bool {
	if len(id) != 16 {
		return false
	}

	var total int
	for i := 0; i < 15; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return false
		}
		total = (total + int(c-'0')) * 2
	}

	var expected byte
	switch r := (12 - total%11) % 11; r {
	case 10:
		expected = 'X'
	default:
		expected = byte('0' + r)
	}
	check := id[15]
	return check == expected || (expected == 'X' && check == 'x')
}

func trimPrefixes(s string, prefixes ...string) string {
	for _, p := range prefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return s[len(p):]
		}
	}
	return s
}

// Identifiers requires every element found at path to hold a valid identifier.  A
// document without such elements makes the rule inapplicable.
func Identifiers(rel, path, kind string, valid Validator) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		return checkIdentifiers(root.FindAll(path), kind, valid), nil
	})
}

// TypedIdentifiers is Identifiers for dcterms:identifier elements whose xsi:type names
// the scheme, e.g. xsi:type="id-type:DOI"
func TypedIdentifiers(rel, scheme string, valid Validator) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		return checkIdentifiers(typed(root, scheme), scheme, valid), nil
	})
}

// HasIdentifier requires at least one dcterms:identifier of the given scheme
func HasIdentifier(rel, scheme string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		root, err := document(b, rel)
		if err != nil {
			return dansbag.Outcome{}, err
		}
		if len(typed(root, scheme)) == 0 {
			return dansbag.Failf("%s must contain an identifier of type %s", rel, scheme), nil
		}
		return dansbag.Pass(), nil
	})
}

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

func typed(root *metadata.Node, scheme string) []*metadata.Node {
	var found []*metadata.Node
	for _, n := range root.FindAll("//identifier") {
		t, ok := n.AttrNS(xsiNamespace, "type")
		if !ok {
			continue
		}
		if t == scheme || strings.HasSuffix(t, ":"+scheme) {
			found = append(found, n)
		}
	}
	return found
}

func checkIdentifiers(nodes []*metadata.Node, kind string, valid Validator) dansbag.Outcome {
	if len(nodes) == 0 {
		return dansbag.NotApplicable(fmt.Sprintf("no %s", kind))
	}

	var problems []string
	for _, n := range nodes {
		if id := n.Text(); !valid(id) {
			problems = append(problems, fmt.Sprintf("%s %q is invalid", kind, id))
		}
	}
	return dansbag.Collect(problems)
}
