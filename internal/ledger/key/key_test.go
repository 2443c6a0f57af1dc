package key

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veryphy/pkg/domain-errors"
)

func TestMake(t *testing.T) {
	t.Run("derives distinct keys for distinct tuples", func(t *testing.T) {
		a, err := Make("Degree", "DEG-1")
		require.NoError(t, err)
		b, err := Make("Degree", "DEG-2")
		require.NoError(t, err)
		c, err := Make("University", "DEG-1")
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("is deterministic", func(t *testing.T) {
		a, err := Make("Hash", "abc123")
		require.NoError(t, err)
		b, err := Make("Hash", "abc123")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("no collision when attribute boundaries shift", func(t *testing.T) {
		// ("A", "BC") and ("AB", "C") must not join to the same flat key.
		a, err := Make("A", "BC")
		require.NoError(t, err)
		b, err := Make("AB", "C")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("orders lexicographically by kind then attributes", func(t *testing.T) {
		k1, _ := Make("Degree", "DEG-1")
		k2, _ := Make("Degree", "DEG-10")
		k3, _ := Make("Degree", "DEG-2")
		k4, _ := Make("Hash", "0000")

		keys := []string{k4.String(), k3.String(), k1.String(), k2.String()}
		sort.Strings(keys)
		assert.Equal(t, []string{k1.String(), k2.String(), k3.String(), k4.String()}, keys)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		cases := []struct {
			name  string
			kind  string
			attrs []string
		}{
			{"empty kind", "", []string{"x"}},
			{"no attributes", "Degree", nil},
			{"empty attribute", "Degree", []string{""}},
			{"separator in kind", "De\x00gree", []string{"x"}},
			{"separator in attribute", "Degree", []string{"a\x00b"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Make(tc.kind, tc.attrs...)
				require.Error(t, err)
				assert.Equal(t, dErrors.CodeInvalidKey, dErrors.CodeOf(err))
			})
		}
	})
}
