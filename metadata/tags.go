package metadata

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Tag is a single label/value pair from a BagIt tag file
type Tag struct {
	Label string
	Value string
}

// Tags holds the contents of a tag file, in file order.  Labels may repeat.
type Tags []Tag

// Declaration is the content of bagit.txt
type Declaration struct {
	Version  string
	Encoding string
}

// ParseTags parses a tag file (bagit.txt, bag-info.txt).  Lines starting with
// whitespace continue the value of the preceding tag.
func ParseTags(r io.Reader) (Tags, error) {
	var tags Tags
	scanner := bufio.NewScanner(r)

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if n == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(tags) == 0 {
				return nil, fmt.Errorf("line %d: continuation without a preceding tag", n)
			}
			tags[len(tags)-1].Value += " " + strings.TrimSpace(line)
			continue
		}

		i := strings.Index(line, ":")
		if i <= 0 {
			return nil, fmt.Errorf("line %d: expected 'Label: value', got %q", n, line)
		}

		tags = append(tags, Tag{
			Label: strings.TrimSpace(line[:i]),
			Value: strings.TrimSpace(line[i+1:]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read tag file")
	}
	return tags, nil
}

// Get returns every value of the given label, matched case insensitively
func (t Tags) Get(label string) []string {
	var values []string
	for _, tag := range t {
		if strings.EqualFold(tag.Label, label) {
			values = append(values, tag.Value)
		}
	}
	return values
}

// First returns the first value of the label, if present
func (t Tags) First(label string) (string, bool) {
	for _, tag := range t {
		if strings.EqualFold(tag.Label, label) {
			return tag.Value, true
		}
	}
	return "", false
}

// Map groups the values by label, as written in the file
func (t Tags) Map() map[string][]string {
	m := make(map[string][]string, len(t))
	for _, tag := range t {
		m[tag.Label] = append(m[tag.Label], tag.Value)
	}
	return m
}

// ParseDeclaration parses bagit.txt
func ParseDeclaration(r io.Reader) (*Declaration, error) {
	tags, err := ParseTags(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse bag declaration")
	}

	d := &Declaration{}
	d.Version, _ = tags.First("BagIt-Version")
	d.Encoding, _ = tags.First("Tag-File-Character-Encoding")
	return d, nil
}
