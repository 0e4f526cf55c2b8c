package locpak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHumanReadableSize_Units(t *testing.T) {
	require.Equal(t, "0 B", humanReadableSize(0))
	require.Equal(t, "512 B", humanReadableSize(512))
	require.Equal(t, "1.0 KiB", humanReadableSize(1024))
	require.Equal(t, "1.5 MiB", humanReadableSize(3*1024*1024/2))
	require.Equal(t, "2.0 GiB", humanReadableSize(2*1024*1024*1024))
}
