package smtpresponse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCRLFMultiLineEHLO(t *testing.T) {
	raw := "250-mail.example.com\r\n250-8BITMIME\r\n250-SIZE 42\r\n250 AUTH PLAIN CRAM-MD5\r\n"
	resp, err := ParseCRLF(raw)
	require.NoError(t, err)
	require.Equal(t, 250, resp.Code)
	require.Equal(t, []string{"mail.example.com", "8BITMIME", "SIZE 42", "AUTH PLAIN CRAM-MD5"}, resp.Lines)
}

func TestParseCRLFCodeContinuityViolation(t *testing.T) {
	raw := "250-foo\r\n251 bar\r\n"
	_, err := ParseCRLF(raw)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, UnexpectedCode, perr.Kind)
}

func TestParseLinesIncomplete(t *testing.T) {
	_, err := ParseLines([]string{"250-mail.example.com"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, Incomplete, perr.Kind)
}

func TestParseLinesMalformed(t *testing.T) {
	for _, line := range []string{"", "2", "ab", "abc def", "25x more"} {
		_, err := ParseLines([]string{line})
		var perr *Error
		require.ErrorAsf(t, err, &perr, "input %q", line)
		require.Equalf(t, Malformed, perr.Kind, "input %q", line)
	}
}

func TestParserStreamingFeedOneLineAtATime(t *testing.T) {
	p := NewParser()
	status, err := p.ConsumeLine("250-first")
	require.NoError(t, err)
	require.Equal(t, NeedMore, status)

	status, err = p.ConsumeLine("250 second")
	require.NoError(t, err)
	require.Equal(t, Complete, status)

	resp := p.Response()
	require.Equal(t, 250, resp.Code)
	require.Equal(t, []string{"first", "second"}, resp.Lines)
}

func TestParserResetAllowsReuse(t *testing.T) {
	p := NewParser()
	_, err := p.ConsumeLine("220 ready")
	require.NoError(t, err)
	p.Reset()

	status, err := p.ConsumeLine("250 ok")
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Equal(t, 250, p.Response().Code)
}

func TestTerminatorWithNoText(t *testing.T) {
	resp, err := ParseCRLF("250\r\n")
	require.NoError(t, err)
	require.Equal(t, 250, resp.Code)
	require.Equal(t, []string{""}, resp.Lines)
}

func TestIsPositive(t *testing.T) {
	require.True(t, IsPositive(250))
	require.True(t, IsPositive(354))
	require.False(t, IsPositive(450))
	require.False(t, IsPositive(550))
}

func TestResponseHasCode(t *testing.T) {
	r := Response{Code: 250, Lines: []string{"ok"}}
	require.True(t, r.HasCode(250))
	require.False(t, r.HasCode(251))
}
