// Package dansbag defines an API for checking bags against the DANS BagIt profile.
//
// A profile is a RuleSet: an ordered collection of numbered Rules.  Each rule binds a
// clause number (e.g. "3.1.4(b)") to a Check, an Applicability restricting it to deposit
// or migration bags, and the numbers of the rules it depends on.  Running a rule set
// against a bag produces a Report with exactly one Entry per rule, in declaration order.
//
// Checks only ever decide for themselves: Pass, Fail or NotApplicable.  Everything that
// follows from that (skipping dependents, leaving out rules that don't apply to the
// current Mode) is decided by the engine; see the engine package.  The rules of the
// DANS profile itself live in the profile package, the checks they use in checks.
package dansbag
