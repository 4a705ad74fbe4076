package smtpext

import (
	"testing"

	"github.com/mailforge/mailforge/smtpresponse"
	"github.com/stretchr/testify/require"
)

func TestFromEHLOMultiLine(t *testing.T) {
	resp, err := smtpresponse.ParseCRLF("250-mail.example.com\r\n250-8BITMIME\r\n250-SIZE 42\r\n250 AUTH PLAIN CRAM-MD5\r\n")
	require.NoError(t, err)

	info := FromEHLO(resp)
	require.Equal(t, "mail.example.com", info.Hostname)
	require.True(t, info.EightBitMIME)
	require.True(t, info.HasSizeLimit())
	require.Equal(t, 42, info.SizeLimit)
	require.Equal(t, []string{"PLAIN", "CRAM-MD5"}, info.AuthMechanisms)
	require.False(t, info.SMTPUTF8)
	require.False(t, info.StartTLS)
}

func TestFromEHLOUnknownKeywordIgnored(t *testing.T) {
	resp, err := smtpresponse.ParseCRLF("250-mail.example.com\r\n250-WHATEVER foo bar\r\n250 STARTTLS\r\n")
	require.NoError(t, err)
	info := FromEHLO(resp)
	require.True(t, info.StartTLS)
}

func TestNegotiateMechanismsCallerOrder(t *testing.T) {
	info := ServerInfo{AuthMechanisms: []string{"LOGIN", "PLAIN", "CRAM-MD5"}}
	got := info.NegotiateMechanisms([]string{"PLAIN", "XOAUTH2"}, false)
	require.Equal(t, []string{"PLAIN"}, got)
}

func TestNegotiateMechanismsServerOrder(t *testing.T) {
	info := ServerInfo{AuthMechanisms: []string{"LOGIN", "PLAIN", "CRAM-MD5"}}
	got := info.NegotiateMechanisms([]string{"PLAIN", "LOGIN"}, true)
	require.Equal(t, []string{"LOGIN", "PLAIN"}, got)
}

func TestSizeNotAdvertised(t *testing.T) {
	resp, err := smtpresponse.ParseCRLF("250 mail.example.com\r\n")
	require.NoError(t, err)
	info := FromEHLO(resp)
	require.False(t, info.HasSizeLimit())
	require.Equal(t, sizeNotAdvertised, info.SizeLimit)
}
