package metadata

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Node is an element of a parsed XML metadata document (dataset.xml, files.xml).
// Only elements, attributes and character data are kept.
type Node struct {
	Space    string
	Name     string
	Attrs    []xml.Attr
	Children []*Node
	text     strings.Builder
}

// ParseXML parses a complete XML document and returns its root element
func ParseXML(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed XML")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Space: t.Name.Space, Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("malformed XML: more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("malformed XML: no root element")
	}
	return root, nil
}

// Text is the trimmed character data directly inside the element
func (n *Node) Text() string {
	return strings.TrimSpace(n.text.String())
}

// Attr returns the value of the attribute with the given local name
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrNS returns the value of an attribute in the given namespace
func (n *Node) AttrNS(space, local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// FindAll returns every descendant reached by the slash separated path of local names.
// A "*" segment matches any element; an empty first segment ("//name") searches
// at any depth.
func (n *Node) FindAll(path string) []*Node {
	if strings.HasPrefix(path, "//") {
		name := strings.TrimPrefix(path, "//")
		rest := ""
		if i := strings.Index(name, "/"); i >= 0 {
			name, rest = name[:i], name[i+1:]
		}
		var out []*Node
		n.descendants(func(d *Node) {
			if d.Name == name || name == "*" {
				if rest == "" {
					out = append(out, d)
				} else {
					out = append(out, d.FindAll(rest)...)
				}
			}
		})
		return out
	}

	current := []*Node{n}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		var next []*Node
		for _, c := range current {
			for _, child := range c.Children {
				if seg == "*" || child.Name == seg {
					next = append(next, child)
				}
			}
		}
		current = next
	}
	return current
}

// Find returns the first match of FindAll, if any
func (n *Node) Find(path string) (*Node, bool) {
	all := n.FindAll(path)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

func (n *Node) descendants(f func(*Node)) {
	for _, c := range n.Children {
		f(c)
		c.descendants(f)
	}
}
