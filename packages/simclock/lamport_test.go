package simclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickIsMonotonic(t *testing.T) {
	c := New()
	require.Equal(t, uint64(1), c.Tick())
	require.Equal(t, uint64(2), c.Tick())
	require.Equal(t, uint64(2), c.Time())
}

func TestObserveTakesMaxPlusOne(t *testing.T) {
	c := New()
	c.Tick() // time = 1
	require.Equal(t, uint64(11), c.Observe(10))
	require.Equal(t, uint64(11), c.Time())
}

func TestObserveWhenLocalAhead(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	require.Equal(t, uint64(6), c.Observe(2))
}

func TestCompare(t *testing.T) {
	require.Equal(t, -1, Compare(1, 2))
	require.Equal(t, 1, Compare(2, 1))
	require.Equal(t, 0, Compare(5, 5))
}
