package smtpcmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEHLO(t *testing.T) {
	require.Equal(t, "EHLO client.example.com\r\n", EHLO("client.example.com"))
}

func TestMAILBasic(t *testing.T) {
	line, err := MAIL("sender@example.com", MailParams{}, false, false)
	require.NoError(t, err)
	require.Equal(t, "MAIL FROM:<sender@example.com>\r\n", line)
}

func TestMAILNullSender(t *testing.T) {
	line, err := MAIL("", MailParams{}, false, false)
	require.NoError(t, err)
	require.Equal(t, "MAIL FROM:<>\r\n", line)
}

func TestMAILParams(t *testing.T) {
	line, err := MAIL("sender@example.com", MailParams{EightBitMIME: true, SMTPUTF8: true, Size: 1024}, true, true)
	require.NoError(t, err)
	require.Equal(t, "MAIL FROM:<sender@example.com> BODY=8BITMIME SMTPUTF8 SIZE=1024\r\n", line)
}

func TestMAILRejectsUTF8WithoutAdvertisement(t *testing.T) {
	_, err := MAIL("fóo@example.com", MailParams{}, false, false)
	require.ErrorIs(t, err, ErrFeatureUnsupported)
}

func TestMAILRejects8BitMIMEWithoutAdvertisement(t *testing.T) {
	_, err := MAIL("sender@example.com", MailParams{EightBitMIME: true}, true, false)
	require.ErrorIs(t, err, ErrFeatureUnsupported)
}

func TestRCPT(t *testing.T) {
	line, err := RCPT("rcpt@example.com", false)
	require.NoError(t, err)
	require.Equal(t, "RCPT TO:<rcpt@example.com>\r\n", line)
}

func TestRCPTRejectsUTF8WithoutAdvertisement(t *testing.T) {
	_, err := RCPT("fóo@example.com", false)
	require.ErrorIs(t, err, ErrFeatureUnsupported)
}

func TestRCPTAllowsUTF8WhenAdvertised(t *testing.T) {
	line, err := RCPT("fóo@example.com", true)
	require.NoError(t, err)
	require.Equal(t, "RCPT TO:<fóo@example.com>\r\n", line)
}

func TestBareVerbs(t *testing.T) {
	require.Equal(t, "DATA\r\n", DATA())
	require.Equal(t, "STARTTLS\r\n", STARTTLS())
	require.Equal(t, "NOOP\r\n", NOOP())
	require.Equal(t, "QUIT\r\n", QUIT())
	require.Equal(t, "RSET\r\n", RSET())
}

func TestAUTH(t *testing.T) {
	require.Equal(t, "AUTH PLAIN\r\n", AUTH("PLAIN", ""))
	require.Equal(t, "AUTH PLAIN AGZvbwBiYXI=\r\n", AUTH("PLAIN", "AGZvbwBiYXI="))
}
