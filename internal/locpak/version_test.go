package locpak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareVersions_TupleSemantics(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"4.4.4", "4.4.4", 0},
		{"4.3.9", "4.4.4", -1},
		{"4.4.3", "4.4.4", -1},
		{"4.4.5", "4.4.4", 1},
		// Per-segment numeric compare: 10 > 4 even though "1" < "4".
		{"4.10.0", "4.4.4", 1},
		// And 0 < 4 in the leading segment, digits notwithstanding.
		{"0.44.4", "4.4.4", -1},
		// Shorter versions pad with zeros.
		{"4.4", "4.4.4", -1},
		{"4.4.4.1", "4.4.4", 1},
		{"4.4.10", "4.4.9", 1},
		// Non-numeric segments fall back to lexicographic.
		{"1.0a", "1.0b", -1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, compareVersions(tc.a, tc.b),
			"compareVersions(%q, %q)", tc.a, tc.b)
	}
}

func TestCondaNeedsUpgrade_GateBoundaries(t *testing.T) {
	require.True(t, condaNeedsUpgrade("4.3.9"))
	require.True(t, condaNeedsUpgrade("0.44.4"))
	require.False(t, condaNeedsUpgrade("4.4.4"))
	require.False(t, condaNeedsUpgrade("4.4.5"))
	require.False(t, condaNeedsUpgrade("4.10.0"))
	require.False(t, condaNeedsUpgrade("5.0"))
}

func TestVersionSatisfies_Operators(t *testing.T) {
	require.True(t, versionSatisfies("4.4.4", "==", "4.4.4"))
	require.False(t, versionSatisfies("4.4.3", "==", "4.4.4"))
	require.True(t, versionSatisfies("4.4.3", "<", "4.4.4"))
	require.False(t, versionSatisfies("4.10.0", "<", "4.4.4"))
	require.True(t, versionSatisfies("4.10.0", ">=", "4.4.4"))
	require.True(t, versionSatisfies("4.4.4", "<=", "4.4.4"))
	require.True(t, versionSatisfies("4.4.5", ">", "4.4.4"))
	require.False(t, versionSatisfies("4.4.5", ">", "4.10.0"))
}
