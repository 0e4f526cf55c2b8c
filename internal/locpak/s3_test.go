package locpak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelContentType_ByKeySuffix(t *testing.T) {
	require.Equal(t, "application/json", channelContentType("channel-index.json"))
	require.Equal(t, "application/zip", channelContentType("noarch/behresp-0.4.0-py36_0.conda"))
	require.Equal(t, "application/x-tar", channelContentType("linux-64/behresp-0.4.0-py36_0.tar.bz2"))
	require.Equal(t, "application/octet-stream", channelContentType("README"))
}

func TestNewChannelClient_RequiresCredentials(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		"LOCPAK_S3_ENDPOINT": "https://example.invalid",
	}}
	_, err := NewChannelClient(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel credentials missing")
}
