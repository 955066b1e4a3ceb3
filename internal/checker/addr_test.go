package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("example.com:8080")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)
	require.Equal(t, 8080, port)

	// Split happens from the right, so colons in the host survive
	host, port, err = splitHostPort("[::1]:443")
	require.NoError(t, err)
	require.Equal(t, "::1", host)
	require.Equal(t, 443, port)

	_, _, err = splitHostPort("no-port-here")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, _, err = splitHostPort(":8080")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, _, err = splitHostPort("example.com:notaport")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, _, err = splitHostPort("example.com:0")
	require.ErrorIs(t, err, ErrInvalidPort)

	_, _, err = splitHostPort("example.com:65536")
	require.ErrorIs(t, err, ErrInvalidPort)
}

func TestHostForTLS(t *testing.T) {
	host, port, err := hostForTLS("example.com")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)
	require.Equal(t, 443, port)

	host, port, err = hostForTLS("example.com:8443")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)
	require.Equal(t, 8443, port)

	host, port, err = hostForTLS("https://example.com/path?x=1")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)
	require.Equal(t, 443, port)

	host, port, err = hostForTLS("https://example.com:9443")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)
	require.Equal(t, 9443, port)

	_, _, err = hostForTLS("https://")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestHostForPing(t *testing.T) {
	host, err := hostForPing("example.com")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)

	host, err = hostForPing("https://example.com/health")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)

	host, err = hostForPing("example.com:8080")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)

	_, err = hostForPing("")
	require.ErrorIs(t, err, ErrInvalidAddress)
}
