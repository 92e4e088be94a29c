/*
Package engine runs a dansbag.RuleSet against a bag.

Rules are executed in dependency order.  A rule whose prerequisites did not all hold is
never checked; it is reported as Skipped, and so is everything that depends on it.  Rules
that do not apply to the requested mode are reported as OutOfScope, and their dependents
treat them as satisfied.

Rule sets should be checked for consistency once, with Validate (New does that), before
they are used to validate any bag.
*/
package engine
