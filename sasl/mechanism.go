// Package sasl models SMTP AUTH mechanisms (RFC 4954) as a small
// challenge/response state machine, one concrete type per mechanism stored
// behind a common interface — the dynamic-dispatch design the spec's notes
// call for instead of baking one mechanism into the engine.
package sasl

// Mechanism drives one SASL authentication exchange. Step is called with
// the server's base64-decoded challenge (nil for the very first call when
// the mechanism supports an initial response) and returns the next token to
// send, or done=true once the mechanism has nothing further to send.
type Mechanism interface {
	// Name is the mechanism name as advertised by the server, e.g. "PLAIN".
	Name() string
	// SupportsInitialResponse reports whether the first AUTH command line
	// may carry this mechanism's first response inline.
	SupportsInitialResponse() bool
	// Step computes the next token to send in response to challenge (nil
	// on the very first call). done is true once the mechanism has
	// produced its final token and expects no further challenges.
	Step(challenge []byte) (response []byte, done bool, err error)
}
