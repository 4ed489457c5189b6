package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_ZeroStart(t *testing.T) {
	m := NewMock(time.Time{})
	assert.Equal(t, time.Unix(1000000000, 0), m.Now())
}

func TestMock_AfterAdvancesAndFires(t *testing.T) {
	start := time.Unix(2000, 0)
	m := NewMock(start)

	select {
	case fired := <-m.After(250 * time.Millisecond):
		assert.Equal(t, start.Add(250*time.Millisecond), fired)
	default:
		t.Fatal("mock After channel should fire immediately")
	}

	assert.Equal(t, start.Add(250*time.Millisecond), m.Now())
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, m.Waits())
}

func TestMock_AdvanceNegativePanics(t *testing.T) {
	m := NewMock(time.Time{})
	require.Panics(t, func() { m.Advance(-time.Second) })
}

func TestMonotonic_Now(t *testing.T) {
	var c Clock = Monotonic{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}
