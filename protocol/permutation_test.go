package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixPositionRotates(t *testing.T) {
	// Item 1 keeps protocol order; later items rotate it.
	require.Equal(t, 1, MixPosition(1, 1, 3))
	require.Equal(t, 2, MixPosition(2, 1, 3))
	require.Equal(t, 3, MixPosition(3, 1, 3))

	require.Equal(t, 2, MixPosition(1, 2, 3))
	require.Equal(t, 3, MixPosition(2, 2, 3))
	require.Equal(t, 1, MixPosition(3, 2, 3))
}

func TestMixPositionBijective(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for p := 1; p <= 2*n+1; p++ {
			seen := make(map[int]bool, n)
			for tr := 1; tr <= n; tr++ {
				k := MixPosition(tr, p, n)
				require.True(t, k >= 1 && k <= n)
				require.False(t, seen[k], "collision at n=%d p=%d", n, p)
				seen[k] = true
				require.Equal(t, tr, TrusteeAtPosition(k, p, n))
			}
		}
	}
}

func TestDecryptorForItemRotates(t *testing.T) {
	require.Equal(t, 1, DecryptorForItem(1, 3))
	require.Equal(t, 2, DecryptorForItem(2, 3))
	require.Equal(t, 3, DecryptorForItem(3, 3))
	require.Equal(t, 1, DecryptorForItem(4, 3))
}
