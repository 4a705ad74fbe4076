package dkim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeBodySimple(t *testing.T) {
	in := []byte("test\r\n\r\ntest   \ttest\r\n\r\n\r\n")
	out := canonicalizeBodySimple(in)
	require.Equal(t, "test\r\n\r\ntest   \ttest\r\n", string(out))
}

func TestCanonicalizeBodyRelaxed(t *testing.T) {
	in := []byte("test\r\n\r\ntest   \ttest\r\n\r\n\r\n")
	out := canonicalizeBodyRelaxed(in)
	require.Equal(t, "test\r\n\r\ntest test\r\n", string(out))
}

func TestCanonicalizeBodyEmpty(t *testing.T) {
	require.Equal(t, "\r\n", string(canonicalizeBodySimple(nil)))
	require.Equal(t, "\r\n", string(canonicalizeBodyRelaxed(nil)))
}

func TestCanonicalizeBodyIsFixedPoint(t *testing.T) {
	in := []byte("test\r\n\r\ntest   \ttest\r\n\r\n\r\n")
	for _, mode := range []Canon{Simple, Relaxed} {
		once := canonicalizeBody(in, mode)
		twice := canonicalizeBody(once, mode)
		require.Equal(t, string(once), string(twice), "mode %s", mode)
	}
}

func TestCanonicalizeHeaderSimple(t *testing.T) {
	require.Equal(t, "Subject: Hello World\r\n", canonicalizeHeaderSimple("Subject", "Hello World"))
}

func TestCanonicalizeHeaderRelaxed(t *testing.T) {
	got := canonicalizeHeaderRelaxed("Subject", "  Hello   World  ")
	require.Equal(t, "subject:Hello World\r\n", got)
}

func TestCanonicalizeHeaderRelaxedUnfoldsContinuation(t *testing.T) {
	got := canonicalizeHeaderRelaxed("To", "a@example.com,\r\n b@example.com")
	require.Equal(t, "to:a@example.com, b@example.com\r\n", got)
}
