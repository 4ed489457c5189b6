package verify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireAssertion(t *testing.T, err error) *AssertionError {
	t.Helper()
	var ae *AssertionError
	require.True(t, errors.As(err, &ae), "expected *AssertionError, got %T: %v", err, err)
	return ae
}

func TestEqual(t *testing.T) {
	assert.NoError(t, Equal("On", "On", ""))
	assert.NoError(t, Equal(3, 3, ""))

	err := Equal("Off", "On", "Device status not matched")
	ae := requireAssertion(t, err)
	assert.Equal(t, "Off", ae.Actual)
	assert.Equal(t, "On", ae.Expected)
	assert.Contains(t, err.Error(), "Device status not matched")
	assert.Contains(t, err.Error(), `"Off"`)
	assert.Contains(t, err.Error(), `"On"`)
}

func TestEqual_TypeSensitive(t *testing.T) {
	// "5" and 5 are different values.
	requireAssertion(t, Equal("5", 5, ""))
}

func TestNotEqual(t *testing.T) {
	assert.NoError(t, NotEqual("a", "b", ""))
	err := NotEqual("a", "a", "")
	requireAssertion(t, err)
	assert.Contains(t, err.Error(), "not equal to")
}

func TestMatch_CaseInsensitive(t *testing.T) {
	assert.NoError(t, Match("Fake_Device_0", "^fake_device_\\d$", ""))

	err := Match("Camera", "^mic", "label")
	ae := requireAssertion(t, err)
	assert.Equal(t, "^mic", ae.Expected)
	assert.Contains(t, err.Error(), "Expected RegEx")
	assert.Contains(t, err.Error(), "Camera")
}

func TestNotMatch(t *testing.T) {
	assert.NoError(t, NotMatch("viewer", "^publisher$", ""))
	requireAssertion(t, NotMatch("PUBLISHER", "^publisher$", ""))
}

func TestMatch_InvalidPatternIsNotAssertion(t *testing.T) {
	err := Match("x", "(", "")
	require.Error(t, err)
	assert.False(t, IsAssertion(err))
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestNumericComparisons(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		ok   bool
	}{
		{"ge equal", func() error { return GreaterOrEqual(5, 5, "") }, true},
		{"ge less", func() error { return GreaterOrEqual(4, 5, "") }, false},
		{"le equal", func() error { return LessOrEqual(5, 5, "") }, true},
		{"le greater", func() error { return LessOrEqual(6, 5, "") }, false},
		{"lt less", func() error { return Less(4, 5, "") }, true},
		{"lt equal", func() error { return Less(5, 5, "") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			ae := requireAssertion(t, err)
			assert.Contains(t, err.Error(), fmt.Sprint(ae.Actual))
			assert.Contains(t, err.Error(), fmt.Sprint(ae.Expected))
		})
	}
}

func TestContains(t *testing.T) {
	items := []string{"Auto", "2 Mbps", "1 Mbps"}
	assert.NoError(t, Contains(items, "1 Mbps", ""))

	err := Contains(items, "500 Kbps", "bitrate options")
	requireAssertion(t, err)
	assert.Contains(t, err.Error(), "500 Kbps")
	assert.Contains(t, err.Error(), "2 Mbps")

	assert.NoError(t, NotContains(items, "500 Kbps", ""))
	requireAssertion(t, NotContains(items, "Auto", ""))
}

func TestContainsAll(t *testing.T) {
	keys := []string{"status", "size", "label"}
	assert.NoError(t, ContainsAll(keys, []string{"size", "status"}, ""))
	assert.NoError(t, ContainsAll(keys, nil, ""))

	ae := requireAssertion(t, ContainsAll(keys, []string{"size", "colour", "volume"}, "view keys"))
	assert.Equal(t, []string{"colour", "volume"}, ae.Expected)
	assert.Equal(t, keys, ae.Actual)
	assert.Contains(t, ae.Error(), "Expected all items, missing: [colour, volume]")
}

func TestIsAssertion_Wrapped(t *testing.T) {
	err := fmt.Errorf("step failed: %w", Equal(1, 2, ""))
	assert.True(t, IsAssertion(err))
	assert.False(t, IsAssertion(errors.New("boom")))
	assert.False(t, IsAssertion(nil))
}

func TestAssertionError_NoMessage(t *testing.T) {
	err := Equal("a", "b", "")
	assert.Contains(t, err.Error(), "assertion failed")
}
