package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, int64(0), c.Current())

	var got []int64
	for range 3 {
		got = append(got, c.Next())
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, int64(3), c.Current())
}

func TestDeterministicClock_Rewind(t *testing.T) {
	c := NewDeterministicClock()
	first := []int64{c.Next(), c.Next()}

	assert.Equal(t, int64(2), c.Rewind())
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, first, []int64{c.Next(), c.Next()}, "a rewound clock repeats its numbering")

	fresh := NewDeterministicClock()
	assert.Equal(t, int64(0), fresh.Rewind())
}
