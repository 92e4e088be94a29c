package dansbag

import "fmt"

// Outcome is what a single Check decided about a bag.  Use Pass, Fail and NotApplicable
// to create one.
type Outcome struct {
	Status   Status
	Messages []string
	Err      error
}

// Pass means the rule holds for the bag
func Pass() Outcome {
	return Outcome{Status: Satisfied}
}

// Fail means the bag violates the rule.  The messages tell the depositor exactly what is wrong.
func Fail(messages ...string) Outcome {
	return Outcome{Status: Violated, Messages: messages}
}

// Failf is Fail with a single formatted message
func Failf(format string, args ...interface{}) Outcome {
	return Fail(fmt.Sprintf(format, args...))
}

// NotApplicable means the rule's precondition does not hold for the bag, e.g. an optional
// element is simply absent.  That is not a defect of the bag, but nothing that depends on
// the rule can be checked.
func NotApplicable(reason ...string) Outcome {
	return Outcome{Status: Inapplicable, Messages: reason}
}

// Collect turns a list of problems into an Outcome: Pass if there are none, Fail otherwise
func Collect(problems []string) Outcome {
	if len(problems) == 0 {
		return Pass()
	}
	return Fail(problems...)
}
