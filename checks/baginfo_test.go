package checks_test

import (
	"context"
	"testing"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/checks"
	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/stretchr/testify/assert"
)

func TestInfoReadable(t *testing.T) {
	assert.Equal(t, dansbag.Satisfied, check(t, checks.InfoReadable(), bagtest.New(t).Open()).Status)

	out := check(t, checks.InfoReadable(), bagtest.New(t).Without("bag-info.txt").Open())
	assert.Equal(t, []string{"bag-info.txt is missing"}, out.Messages)

	out = check(t, checks.InfoReadable(), bagtest.New(t).Overwrite("bag-info.txt", " continued\n").Open())
	assert.Equal(t, dansbag.Violated, out.Status)
	assert.Contains(t, out.Messages[0], "continuation without a preceding tag")
}

func TestCreated(t *testing.T) {
	cases := []struct {
		name    string
		values  []string
		status  dansbag.Status
		message string
	}{
		{
			name:   "offset",
			values: []string{"2023-05-01T10:00:00+02:00"},
			status: dansbag.Satisfied,
		},
		{
			name:   "fraction",
			values: []string{"2023-05-01T10:00:00.123Z"},
			status: dansbag.Satisfied,
		},
		{
			name:    "noZone",
			values:  []string{"2023-05-01T10:00:00"},
			status:  dansbag.Violated,
			message: `Created "2023-05-01T10:00:00" is not an ISO 8601 date-time with time zone`,
		},
		{
			name:    "dateOnly",
			values:  []string{"2023-05-01"},
			status:  dansbag.Violated,
			message: `Created "2023-05-01" is not an ISO 8601 date-time with time zone`,
		},
		{
			name:    "missing",
			status:  dansbag.Violated,
			message: "bag-info.txt must contain a Created element",
		},
		{
			name:    "twice",
			values:  []string{"2023-05-01T10:00:00Z", "2023-05-02T10:00:00Z"},
			status:  dansbag.Violated,
			message: "bag-info.txt must contain exactly one Created element, found 2",
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			out := check(t, checks.Created(), bagtest.New(t).Info("Created", c.values...).Open())
			assert.Equal(t, c.status, out.Status, "%v", out.Messages)
			if c.message != "" {
				assert.Equal(t, []string{c.message}, out.Messages)
			}
		})
	}
}

func TestCardinality(t *testing.T) {
	const label = "Is-Version-Of"
	id := "urn:uuid:0b9bb5ee-3187-4387-bb39-2c09536c79f7"

	cases := []struct {
		name       string
		values     []string
		atMostOnce dansbag.Status
		exactly    dansbag.Status
		absent     dansbag.Status
	}{
		{
			name:       "none",
			atMostOnce: dansbag.Inapplicable,
			exactly:    dansbag.Violated,
			absent:     dansbag.Satisfied,
		},
		{
			name:       "one",
			values:     []string{id},
			atMostOnce: dansbag.Satisfied,
			exactly:    dansbag.Satisfied,
			absent:     dansbag.Violated,
		},
		{
			name:       "two",
			values:     []string{id, id},
			atMostOnce: dansbag.Violated,
			exactly:    dansbag.Violated,
			absent:     dansbag.Violated,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			b := bagtest.New(t).Info(label, c.values...).Open()

			assert.Equal(t, c.atMostOnce, check(t, checks.AtMostOnce(label), b).Status)
			assert.Equal(t, c.exactly, check(t, checks.ExactlyOnce(label), b).Status)
			assert.Equal(t, c.absent, check(t, checks.Absent(label), b).Status)
		})
	}
}

func TestNotBlank(t *testing.T) {
	b := bagtest.New(t).Info("Data-Station-User-Account", "user001").Open()
	assert.Equal(t, dansbag.Satisfied, check(t, checks.NotBlank("Data-Station-User-Account"), b).Status)

	b = bagtest.New(t).Info("Data-Station-User-Account", "").Open()
	out := check(t, checks.NotBlank("Data-Station-User-Account"), b)
	assert.Equal(t, []string{"Data-Station-User-Account must not be blank"}, out.Messages)
}

func TestIsVersionOfUUID(t *testing.T) {
	cases := []struct {
		value  string
		status dansbag.Status
	}{
		{"urn:uuid:0b9bb5ee-3187-4387-bb39-2c09536c79f7", dansbag.Satisfied},
		{"URN:UUID:0B9BB5EE-3187-4387-BB39-2C09536C79F7", dansbag.Satisfied},
		{"0b9bb5ee-3187-4387-bb39-2c09536c79f7", dansbag.Violated},
		{"urn:uuid:not-a-uuid", dansbag.Violated},
		{"urn:nbn:nl:ui:13-abc", dansbag.Violated},
	}

	for _, c := range cases {
		c := c
		t.Run(c.value, func(t *testing.T) {
			out := check(t, checks.IsVersionOfUUID(), bagtest.New(t).Info("Is-Version-Of", c.value).Open())
			assert.Equal(t, c.status, out.Status, "%v", out.Messages)
		})
	}

	t.Run("absent", func(t *testing.T) {
		out := check(t, checks.IsVersionOfUUID(), bagtest.New(t).Open())
		assert.Equal(t, dansbag.Inapplicable, out.Status)
	})
}

func TestMissingInfoIsAnError(t *testing.T) {
	b := bagtest.New(t).Without("bag-info.txt").Open()

	_, err := checks.Created().Check(context.Background(), b)
	assert.Error(t, err)
}
