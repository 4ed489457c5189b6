package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		in   string
		d    Directive
		rest string
	}{
		{"ignore:", Ignore, ""},
		{"ignore: anything", Ignore, "anything"},
		{"contains: viewers can join", Contains, "viewers can join"},
		{"regex: ^\\d+$", Regex, "^\\d+$"},
		{"regex:contains: x", Regex, "contains: x"},
		{"Get started", NoDirective, "Get started"},
		{" regex: x", NoDirective, " regex: x"},
	}
	for _, tt := range tests {
		d, rest := ParseDirective(tt.in)
		assert.Equal(t, tt.d, d, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)

		d2, rest2 := ParseDirective(tt.in)
		assert.Equal(t, d, d2)
		assert.Equal(t, rest, rest2)
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("whatever", "ignore:", ""))
	assert.NoError(t, Check("2 viewers can join", "contains: viewers can join", ""))
	assert.NoError(t, Check("00:01:02", `regex:^\d{2}:\d{2}:\d{2}$`, ""))
	assert.NoError(t, Check("H264", "regex:^h264$", ""), "regex is case-insensitive")
	assert.NoError(t, Check("Get started", "Get started", ""))

	err := Check("get started", "Get started", "title")
	assert.True(t, verify.IsAssertion(err), "exact comparison is case sensitive")
	assert.True(t, verify.IsAssertion(Check("abc", "contains: z", "")))
	assert.True(t, verify.IsAssertion(Check("abc", "regex:^z", "")))
}
