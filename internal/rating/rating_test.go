package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnrated(t *testing.T) {
	a, b := Unrated(1500, 1700, Win)

	assert.Equal(t, 1500.0, a)
	assert.Equal(t, 1700.0, b)
}

func TestFixedK(t *testing.T) {
	rate := FixedK(32)

	t.Run("Equal players exchange half the K factor on a win", func(t *testing.T) {
		a, b := rate(1500, 1500, Win)

		assert.InDelta(t, 1516, a, 0.01)
		assert.InDelta(t, 1484, b, 0.01)
	})

	t.Run("A draw between equal players changes nothing", func(t *testing.T) {
		a, b := rate(1500, 1500, Draw)

		assert.InDelta(t, 1500, a, 0.01)
		assert.InDelta(t, 1500, b, 0.01)
	})

	t.Run("Updates are zero-sum", func(t *testing.T) {
		a, b := rate(1432, 1671, Loss)

		require.InDelta(t, 1432+1671, a+b, 0.0001)
		assert.Less(t, a, 1432.0)
		assert.Greater(t, b, 1671.0)
	})
}
