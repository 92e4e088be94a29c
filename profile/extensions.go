package profile

import (
	"io"
	"os"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/checks"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Extension is a rule defined in an extension file.  Its check is a CEL expression over
// the elements of bag-info.txt, see checks.Expression.
type Extension struct {
	Number        string   `yaml:"number"`
	Description   string   `yaml:"description,omitempty"`
	Applicability string   `yaml:"applicability,omitempty"`
	Prerequisites []string `yaml:"prerequisites,omitempty"`
	Expression    string   `yaml:"expression"`
	Message       string   `yaml:"message,omitempty"`
}

type extensionFile struct {
	Rules []Extension `yaml:"rules"`
}

// Rule compiles the extension into a rule
func (e Extension) Rule() (dansbag.Rule, error) {
	if e.Number == "" {
		return dansbag.Rule{}, errors.New("extension rule has no number")
	}

	applicability, err := dansbag.ParseApplicability(e.Applicability)
	if err != nil {
		return dansbag.Rule{}, errors.Wrapf(err, "rule %s", e.Number)
	}

	message := e.Message
	if message == "" {
		message = "bag-info.txt does not satisfy " + e.Expression
	}

	check, err := checks.Expression(e.Expression, message)
	if err != nil {
		return dansbag.Rule{}, errors.Wrapf(err, "rule %s", e.Number)
	}

	return dansbag.Rule{
		Number:        e.Number,
		Description:   e.Description,
		Check:         check,
		Applicability: applicability,
		Prerequisites: e.Prerequisites,
	}, nil
}

// ParseExtensions reads extension rules in YAML:
//
//	rules:
//	  - number: "5.1"
//	    description: bags in a group say how many there are
//	    prerequisites: ["1.2.1"]
//	    expression: '!("Bag-Group-Identifier" in info) || "Bag-Count" in info'
//	    message: Bag-Group-Identifier requires a Bag-Count
func ParseExtensions(r io.Reader) ([]dansbag.Rule, error) {
	var file extensionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "malformed extension file")
	}

	rules := make([]dansbag.Rule, 0, len(file.Rules))
	for _, e := range file.Rules {
		r, err := e.Rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadExtensions reads extension rules from a file
func LoadExtensions(path string) ([]dansbag.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open extension file")
	}
	defer f.Close()

	rules, err := ParseExtensions(f)
	return rules, errors.Wrapf(err, "could not load extensions from %s", path)
}

// Extended is the DANS rule set, with the rules of the extension file appended.  An empty
// path means no extensions.
func Extended(path string, fixityWorkers int) (*dansbag.RuleSet, error) {
	rs := DANSWithFixityWorkers(fixityWorkers)
	if path == "" {
		return rs, nil
	}

	rules, err := LoadExtensions(path)
	if err != nil {
		return nil, err
	}
	return rs.Extend(rules...), nil
}
