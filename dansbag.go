package dansbag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode names the variant of the profile a bag is validated against
type Mode int

// Validation modes
const (
	Deposit Mode = iota
	Migration
)

var modeNames = map[Mode]string{
	Deposit:   "deposit",
	Migration: "migration",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name, case insensitively
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return m, nil
		}
	}
	return Deposit, errors.Errorf("unknown mode %q (expected deposit or migration)", s)
}

// MarshalText encodes the mode by name
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Applicability restricts a rule to bags validated in a particular Mode
type Applicability int

// Applicabilities, the zero value applies everywhere
const (
	Any Applicability = iota
	DepositOnly
	MigrationOnly
)

var applicabilityNames = map[Applicability]string{
	Any:           "any",
	DepositOnly:   "deposit-only",
	MigrationOnly: "migration-only",
}

func (a Applicability) String() string {
	if name, ok := applicabilityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Applicability(%d)", int(a))
}

// ParseApplicability parses an applicability name.  The empty string means Any.
func ParseApplicability(s string) (Applicability, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Any, nil
	}
	for a, name := range applicabilityNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return Any, errors.Errorf("unknown applicability %q (expected any, deposit-only or migration-only)", s)
}

// InScope tells whether a rule with this applicability is checked in the given mode
func (a Applicability) InScope(m Mode) bool {
	switch a {
	case Any:
		return true
	case DepositOnly:
		return m == Deposit
	case MigrationOnly:
		return m == Migration
	default:
		return false
	}
}

// Status is the final classification of a rule in a Report.  Checks produce the first
// three; Skipped and OutOfScope are assigned by the engine only.
type Status int

// Statuses, ordered by how they are produced.  The zero value is never reported.
const (
	Unknown Status = iota
	Satisfied
	Violated
	Inapplicable
	Skipped
	OutOfScope
)

var statusNames = map[Status]string{
	Unknown:      "unknown",
	Satisfied:    "satisfied",
	Violated:     "violated",
	Inapplicable: "inapplicable",
	Skipped:      "skipped",
	OutOfScope:   "out-of-scope",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus parses a status name
func ParseStatus(name string) Status {
	for s, n := range statusNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return s
		}
	}
	return Unknown
}

// IsOutcome tells whether a check may produce the status itself
func (s Status) IsOutcome() bool {
	return s == Satisfied || s == Violated || s == Inapplicable
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(b []byte) error {
	parsed := ParseStatus(string(b))
	if parsed == Unknown && !strings.EqualFold(string(b), Unknown.String()) {
		return errors.Errorf("unknown status %q", b)
	}
	*s = parsed
	return nil
}
