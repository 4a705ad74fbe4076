package mailaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeRequiresRecipient(t *testing.T) {
	from, err := NewAddress("sender@example.com")
	require.NoError(t, err)
	_, err = NewEnvelope(&from, nil)
	require.ErrorIs(t, err, ErrMissingTo)
}

func TestNewEnvelopeNullSender(t *testing.T) {
	to, err := NewAddress("rcpt@example.com")
	require.NoError(t, err)
	env, err := NewEnvelope(nil, []Address{to})
	require.NoError(t, err)
	require.Nil(t, env.From)
	require.Len(t, env.To, 1)
}

func TestEnvelopeIsUTF8(t *testing.T) {
	from, _ := NewAddress("sender@example.com")
	asciiTo, _ := NewAddress("rcpt@example.com")
	utf8To, _ := NewAddress("fóo@example.com")

	env, err := NewEnvelope(&from, []Address{asciiTo})
	require.NoError(t, err)
	require.False(t, env.IsUTF8())

	env, err = NewEnvelope(&from, []Address{asciiTo, utf8To})
	require.NoError(t, err)
	require.True(t, env.IsUTF8())
}
