package dkim

import "strings"

// canonicalizeBody applies the configured body canonicalization mode.
func canonicalizeBody(body []byte, mode Canon) []byte {
	if mode == Relaxed {
		return canonicalizeBodyRelaxed(body)
	}
	return canonicalizeBodySimple(body)
}

// canonicalizeBodySimple repeatedly strips trailing empty lines so the body
// ends with exactly one CRLF; an empty body becomes a lone CRLF.
func canonicalizeBodySimple(body []byte) []byte {
	lines := strings.Split(string(body), "\r\n")
	lines = stripTrailingEmptyLines(lines)
	if len(lines) == 0 {
		return []byte("\r\n")
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// canonicalizeBodyRelaxed collapses runs of SP/HTAB to a single SP, strips
// trailing SP/HTAB from every line, then applies the simple trailing-CRLF
// rule.
func canonicalizeBodyRelaxed(body []byte) []byte {
	lines := strings.Split(string(body), "\r\n")
	for i, line := range lines {
		lines[i] = collapseHorizontalWhitespace(line)
	}
	lines = stripTrailingEmptyLines(lines)
	if len(lines) == 0 {
		return []byte("\r\n")
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// stripTrailingEmptyLines is a fixed point under repetition: once the last
// element is non-empty, further calls do nothing, matching the invariant
// that re-canonicalizing an already-canonicalized body is a no-op.
func stripTrailingEmptyLines(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func collapseHorizontalWhitespace(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	inRun := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ' ' || c == '\t' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), " ")
}

// canonicalizeHeader renders one header field per the configured header
// canonicalization mode.
func canonicalizeHeader(name, value string, mode Canon) string {
	if mode == Relaxed {
		return canonicalizeHeaderRelaxed(name, value)
	}
	return canonicalizeHeaderSimple(name, value)
}

func canonicalizeHeaderSimple(name, value string) string {
	return name + ": " + value + "\r\n"
}

// canonicalizeHeaderRelaxed lowercases the name, unfolds embedded CRLFs
// (continuation lines), collapses internal whitespace runs to a single SP,
// and strips leading/trailing whitespace from the value.
func canonicalizeHeaderRelaxed(name, value string) string {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	unfolded := strings.ReplaceAll(value, "\r\n", "")
	collapsed := collapseHorizontalWhitespace(unfolded)
	collapsed = strings.TrimLeft(collapsed, " \t")
	return lowerName + ":" + collapsed + "\r\n"
}

// headerNameForList returns how a signed header's name should appear in
// the DKIM-Signature h= tag: unchanged in simple mode, lowercased in
// relaxed mode.
func headerNameForList(name string, mode Canon) string {
	if mode == Relaxed {
		return strings.ToLower(name)
	}
	return name
}

// dkimHeaderName returns the name under which the constructed
// DKIM-Signature header is canonicalized and ultimately appended:
// "DKIM-Signature" in simple mode, "dkim-signature" in relaxed mode.
func dkimHeaderName(mode Canon) string {
	if mode == Relaxed {
		return "dkim-signature"
	}
	return "DKIM-Signature"
}
