package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdinal(t *testing.T) {
	for in, want := range map[string]int{"": 0, "1st": 0, "2nd": 1, "3rd": 2, "4th": 3, "11th": 10, "21st": 20} {
		got, err := ParseOrdinal(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0th", "first", "2", "-1st"} {
		_, err := ParseOrdinal(in)
		assert.Error(t, err, in)
	}
}
