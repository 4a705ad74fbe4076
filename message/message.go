// Package message provides the minimal Message representation the DKIM
// signer and SMTP body codec operate on. Building a message from MIME parts,
// encoding headers per RFC 2047, and RFC 2822 mailbox grammar are out of
// scope — this package exposes only the byte-level contract: an ordered,
// case-insensitive header list and a raw body.
package message

import "strings"

// Header is a single header field as it will appear on the wire: Name is
// stored as written (case preserved), Value excludes the trailing CRLF and
// any folding whitespace introduced by the author is preserved verbatim.
type Header struct {
	Name  string
	Value string
}

// Message is an ordered list of headers plus a raw body. Headers may repeat
// by name; Last looks up the final occurrence of a name.
type Message struct {
	headers []Header
	Body    []byte
}

// New constructs a Message from a header list and body. The header slice is
// copied; callers retain ownership of the slice they passed in.
func New(headers []Header, body []byte) *Message {
	m := &Message{headers: append([]Header(nil), headers...), Body: body}
	return m
}

// Headers returns the ordered header list.
func (m *Message) Headers() []Header {
	return m.headers
}

// AppendHeader adds a header as the new last header. The DKIM signer uses
// this exclusively to attach DKIM-Signature; no other mutation of the
// header set is performed by this package's callers.
func (m *Message) AppendHeader(name, value string) {
	m.headers = append(m.headers, Header{Name: name, Value: value})
}

// PrependHeader adds a header as the new first header, preserving the
// relative order of the existing ones.
func (m *Message) PrependHeader(name, value string) {
	m.headers = append([]Header{{Name: name, Value: value}}, m.headers...)
}

// Last returns the value of the last header matching name, compared
// ASCII-case-insensitively, and whether one was found. RFC 6376 signing
// canonicalizes the *last* occurrence of a repeated header name.
func (m *Message) Last(name string) (string, bool) {
	for i := len(m.headers) - 1; i >= 0; i-- {
		if strings.EqualFold(m.headers[i].Name, name) {
			return m.headers[i].Value, true
		}
	}
	return "", false
}

// Bytes renders the full message: every header in order, CRLF-terminated,
// a blank line, then the body verbatim. This is the "formatted full-byte
// representation for transmission" the data model describes; it performs no
// canonicalization or dot-stuffing — that is the SMTP body codec's job at
// transmission time.
func (m *Message) Bytes() []byte {
	var b strings.Builder
	for _, h := range m.headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(m.Body)
	return []byte(b.String())
}
