// Package mailaddr holds the envelope-level address and envelope types used
// by the SMTP submission engine. It deliberately does not implement RFC 2822
// mailbox grammar (display names, groups, comments) — that parsing is an
// external collaborator's job. What it owns is the byte-level contract the
// submission flow actually needs: is this address ASCII, and what is its
// domain part.
package mailaddr

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidAddress is returned when an address does not match local@domain.
var ErrInvalidAddress = errors.New("mailaddr: address must be of the form local@domain")

// Address is an opaque local@domain string plus the derived properties the
// engine needs: whether it requires SMTPUTF8, and an ASCII-compatible form
// of the domain part for servers that do not support it.
type Address struct {
	raw    string
	local  string
	domain string
	// asciiDomain, when non-empty, is returned by ASCIIDomain as-is. Nothing
	// in this package sets it, so ASCIIDomain computes the A-label form on
	// every call.
	asciiDomain string
}

// NewAddress validates and constructs an Address from "local@domain".
func NewAddress(s string) (Address, error) {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return Address{}, ErrInvalidAddress
	}
	local, domain := s[:at], s[at+1:]
	if local == "" || domain == "" {
		return Address{}, ErrInvalidAddress
	}
	return Address{raw: s, local: local, domain: domain}, nil
}

// String returns the address in its original local@domain form.
func (a Address) String() string { return a.raw }

// Local returns the local-part of the address.
func (a Address) Local() string { return a.local }

// Domain returns the domain-part of the address, in its original form.
func (a Address) Domain() string { return a.domain }

// IsASCII reports whether every byte of the address is 7-bit ASCII.
func (a Address) IsASCII() bool {
	for i := 0; i < len(a.raw); i++ {
		if a.raw[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ASCIIDomain returns an ASCII-compatible encoding of the domain part,
// converting via IDNA punycode when the domain contains non-ASCII labels.
// When the domain is already ASCII, or conversion fails (malformed label),
// the original domain is returned unchanged — callers that need SMTPUTF8
// fall back to the raw address in that case, they do not use this method.
func (a Address) ASCIIDomain() string {
	if a.asciiDomain != "" {
		return a.asciiDomain
	}
	if isASCIIString(a.domain) {
		return a.domain
	}
	ascii, err := idna.Lookup.ToASCII(a.domain)
	if err != nil {
		return a.domain
	}
	return ascii
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
