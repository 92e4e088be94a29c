package metadata_test

import (
	"strings"
	"testing"

	"github.com/birkland/dansbag/metadata"
	"github.com/go-test/deep"
)

const bagInfo = "\ufeffCreated: 2024-05-01T10:00:00.000+02:00\r\n" +
	"Is-Version-Of: urn:uuid:3c6e9f52-7a8e-4c5f-a0c7-f1b0d3e2a9b1\n" +
	"External-Description: A long description\n" +
	"   that continues here\n" +
	"\tand here\n" +
	"Has-Organizational-Identifier: REPO:1234\n" +
	"has-organizational-identifier: REPO:5678\n"

func TestParseTags(t *testing.T) {
	tags, err := metadata.ParseTags(strings.NewReader(bagInfo))
	if err != nil {
		t.Fatal(err)
	}

	expected := metadata.Tags{
		{Label: "Created", Value: "2024-05-01T10:00:00.000+02:00"},
		{Label: "Is-Version-Of", Value: "urn:uuid:3c6e9f52-7a8e-4c5f-a0c7-f1b0d3e2a9b1"},
		{Label: "External-Description", Value: "A long description that continues here and here"},
		{Label: "Has-Organizational-Identifier", Value: "REPO:1234"},
		{Label: "has-organizational-identifier", Value: "REPO:5678"},
	}

	if diff := deep.Equal(expected, tags); diff != nil {
		t.Error(diff)
	}

	if diff := deep.Equal([]string{"REPO:1234", "REPO:5678"}, tags.Get("HAS-ORGANIZATIONAL-IDENTIFIER")); diff != nil {
		t.Error(diff)
	}

	if v, ok := tags.First("created"); !ok || v != "2024-05-01T10:00:00.000+02:00" {
		t.Errorf("wrong Created value %q", v)
	}

	if _, ok := tags.First("Bag-Size"); ok {
		t.Error("found a tag that is not there")
	}
}

func TestParseTagsBadInput(t *testing.T) {
	for name, input := range map[string]string{
		"danglingContinuation": "  starts with whitespace\n",
		"noColon":              "Created 2024\n",
		"emptyLabel":           ": value\n",
	} {
		input := input
		t.Run(name, func(t *testing.T) {
			if _, err := metadata.ParseTags(strings.NewReader(input)); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestParseDeclaration(t *testing.T) {
	d, err := metadata.ParseDeclaration(strings.NewReader("BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n"))
	if err != nil {
		t.Fatal(err)
	}

	if diff := deep.Equal(&metadata.Declaration{Version: "1.0", Encoding: "UTF-8"}, d); diff != nil {
		t.Error(diff)
	}
}
