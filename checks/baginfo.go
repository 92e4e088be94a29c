package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/bag"
	"github.com/birkland/dansbag/metadata"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const urnUUID = "urn:uuid:"

// info loads bag-info.txt.  A missing or unparseable file is an error: rules using
// these checks depend on the rule that requires a readable bag-info.txt.
func info(b *bag.Bag) (metadata.Tags, error) {
	tags, err := b.Info()
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", metadata.InfoFile)
	}
	return tags, nil
}

// InfoReadable requires a bag-info.txt that follows the tag file grammar
func InfoReadable() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		_, err := b.Info()
		switch {
		case bag.NotFound(err):
			return dansbag.Failf("%s is missing", metadata.InfoFile), nil
		case err != nil:
			return dansbag.Failf("%s is not a valid tag file: %s", metadata.InfoFile, errors.Cause(err)), nil
		}
		return dansbag.Pass(), nil
	})
}

// Created requires exactly one Created element, holding an ISO 8601 date-time with
// a time zone
func Created() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		values := tags.Get("Created")
		switch len(values) {
		case 0:
			return dansbag.Fail("bag-info.txt must contain a Created element"), nil
		case 1:
		default:
			return dansbag.Failf("bag-info.txt must contain exactly one Created element, found %d", len(values)), nil
		}

		if _, err := time.Parse(time.RFC3339Nano, values[0]); err != nil {
			return dansbag.Failf("Created %q is not an ISO 8601 date-time with time zone", values[0]), nil
		}
		return dansbag.Pass(), nil
	})
}

// AtMostOnce allows a label to be present once, or not at all.  Absence makes the rule
// inapplicable, so rules about the label's value are skipped.
func AtMostOnce(label string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		switch values := tags.Get(label); len(values) {
		case 0:
			return dansbag.NotApplicable(fmt.Sprintf("no %s in bag-info.txt", label)), nil
		case 1:
			return dansbag.Pass(), nil
		default:
			return dansbag.Failf("bag-info.txt may contain at most one %s element, found %d", label, len(values)), nil
		}
	})
}

// ExactlyOnce requires a label to be present exactly once
func ExactlyOnce(label string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		if n := len(tags.Get(label)); n != 1 {
			return dansbag.Failf("bag-info.txt must contain exactly one %s element, found %d", label, n), nil
		}
		return dansbag.Pass(), nil
	})
}

// Absent forbids a label
func Absent(label string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		if n := len(tags.Get(label)); n > 0 {
			return dansbag.Failf("bag-info.txt must not contain %s", label), nil
		}
		return dansbag.Pass(), nil
	})
}

// NotBlank requires every value of the label to contain something other than whitespace
func NotBlank(label string) dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		for _, v := range tags.Get(label) {
			if strings.TrimSpace(v) == "" {
				return dansbag.Failf("%s must not be blank", label), nil
			}
		}
		return dansbag.Pass(), nil
	})
}

// IsVersionOfUUID requires the Is-Version-Of element to be a urn:uuid URN
func IsVersionOfUUID() dansbag.Check {
	return dansbag.CheckFunc(func(ctx context.Context, b *bag.Bag) (dansbag.Outcome, error) {
		tags, err := info(b)
		if err != nil {
			return dansbag.Outcome{}, err
		}

		v, ok := tags.First("Is-Version-Of")
		if !ok {
			return dansbag.NotApplicable("no Is-Version-Of in bag-info.txt"), nil
		}

		if !strings.HasPrefix(strings.ToLower(v), urnUUID) {
			return dansbag.Failf("Is-Version-Of %q is not a urn:uuid URN", v), nil
		}
		if _, err := uuid.Parse(v[len(urnUUID):]); err != nil {
			return dansbag.Failf("Is-Version-Of %q does not hold a valid UUID", v), nil
		}
		return dansbag.Pass(), nil
	})
}
