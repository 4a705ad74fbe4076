package mailaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAddress(t *testing.T) {
	a, err := NewAddress("user@example.com")
	require.NoError(t, err)
	require.Equal(t, "user", a.Local())
	require.Equal(t, "example.com", a.Domain())
	require.True(t, a.IsASCII())
	require.Equal(t, "example.com", a.ASCIIDomain())
}

func TestNewAddressRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "noat", "@domain", "local@", "@"} {
		_, err := NewAddress(bad)
		require.ErrorIs(t, err, ErrInvalidAddress, "input %q", bad)
	}
}

func TestAddressNonASCII(t *testing.T) {
	a, err := NewAddress("fóo@example.com")
	require.NoError(t, err)
	require.False(t, a.IsASCII())
}

func TestAddressASCIIDomainPunycode(t *testing.T) {
	a, err := NewAddress("user@münchen.de")
	require.NoError(t, err)
	ascii := a.ASCIIDomain()
	require.Equal(t, "xn--mnchen-3ya.de", ascii)
}
