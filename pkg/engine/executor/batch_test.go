package executor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashValue(t *testing.T) {
	t.Run("equal values hash equally", func(t *testing.T) {
		require.Equal(t, hashValue(int64(42)), hashValue(int64(42)))
		require.Equal(t, hashValue("abc"), hashValue("abc"))
		require.Equal(t, hashValue(1.25), hashValue(1.25))
		require.Equal(t, hashValue(nil), hashValue(nil))
	})

	t.Run("floats hash on their full bit pattern", func(t *testing.T) {
		// Floats sharing an integer part must not collapse into one bucket.
		require.NotEqual(t, hashValue(1.25), hashValue(1.5))
		require.NotEqual(t, hashValue(0.1), hashValue(0.9))
	})

	t.Run("non-finite floats hash without panicking", func(t *testing.T) {
		require.NotPanics(t, func() {
			hashValue(math.NaN())
			hashValue(math.Inf(1))
			hashValue(math.MaxFloat64)
		})
	})
}
