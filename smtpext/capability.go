// Package smtpext parses the EHLO reply into the set of supported ESMTP
// extensions — a plain value type the protocol engine holds and replaces
// wholesale after every EHLO, never merges, per the spec's design note
// avoiding cyclic coupling between the engine and the extension set.
package smtpext

import (
	"strconv"
	"strings"

	"github.com/mailforge/mailforge/smtpresponse"
)

// ServerInfo is the capability set derived from the most recent EHLO reply.
type ServerInfo struct {
	Hostname string

	EightBitMIME bool
	SMTPUTF8     bool
	StartTLS     bool
	Pipelining   bool

	// SizeLimit is the advertised SIZE value, or 0 if SIZE was advertised
	// without a limit, or -1 if SIZE was not advertised at all.
	SizeLimit int

	// AuthMechanisms lists the SASL mechanisms from the AUTH keyword, in
	// the server's preference order (left to right).
	AuthMechanisms []string
}

const sizeNotAdvertised = -1

// FromEHLO builds a ServerInfo from a parsed EHLO reply. Line 0 is the
// greeting, whose first whitespace-delimited token is the hostname. Each
// subsequent line is "KEYWORD [ARG...]"; unrecognized keywords are ignored.
func FromEHLO(resp smtpresponse.Response) ServerInfo {
	info := ServerInfo{SizeLimit: sizeNotAdvertised}
	if len(resp.Lines) == 0 {
		return info
	}
	info.Hostname = firstToken(resp.Lines[0])

	for _, line := range resp.Lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		keyword := strings.ToUpper(fields[0])
		args := fields[1:]
		switch keyword {
		case "8BITMIME":
			info.EightBitMIME = true
		case "SMTPUTF8":
			info.SMTPUTF8 = true
		case "STARTTLS":
			info.StartTLS = true
		case "PIPELINING":
			info.Pipelining = true
		case "SIZE":
			info.SizeLimit = 0
			if len(args) > 0 {
				if n, err := strconv.Atoi(args[0]); err == nil {
					info.SizeLimit = n
				}
			}
		case "AUTH":
			info.AuthMechanisms = append(info.AuthMechanisms, normalizeMechs(args)...)
		}
	}
	return info
}

func normalizeMechs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ToUpper(a)
	}
	return out
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// HasSizeLimit reports whether SIZE was advertised with a nonzero limit.
func (s ServerInfo) HasSizeLimit() bool {
	return s.SizeLimit > 0
}

// SupportsMechanism reports whether mech (any case) is in the advertised
// AUTH list.
func (s ServerInfo) SupportsMechanism(mech string) bool {
	for _, m := range s.AuthMechanisms {
		if strings.EqualFold(m, mech) {
			return true
		}
	}
	return false
}

// NegotiateMechanisms intersects the caller's preferred mechanism order
// with the server's advertised set, preserving the caller's order unless
// preferServerOrder is true, in which case the server's left-to-right
// preference wins.
func (s ServerInfo) NegotiateMechanisms(preferred []string, preferServerOrder bool) []string {
	if preferServerOrder {
		var out []string
		for _, serverMech := range s.AuthMechanisms {
			if containsFold(preferred, serverMech) {
				out = append(out, serverMech)
			}
		}
		return out
	}
	var out []string
	for _, mech := range preferred {
		if s.SupportsMechanism(mech) {
			out = append(out, mech)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
