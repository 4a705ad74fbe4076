package smtpclient

import (
	"encoding/base64"

	"github.com/mailforge/mailforge/sasl"
	"github.com/mailforge/mailforge/smtpcmd"
)

// challengeCap bounds the number of 334 challenges a single AUTH exchange
// may take before the session is considered broken (§4.5 "SASL
// authentication", scenario 8).
const challengeCap = 10

// Authenticate negotiates a SASL mechanism from candidates against the
// server's advertised AUTH list (preferring the caller's order unless
// preferServerOrder is true) and drives it to completion. candidates whose
// Name() is not advertised are skipped. If the intersection is empty,
// Authenticate fails with NoCompatibleMechanism. Otherwise mechanisms are
// tried in negotiated order until one succeeds or all fail; the last
// AuthFailed error is returned if every mechanism was rejected.
func (s *Session) Authenticate(candidates []sasl.Mechanism, preferServerOrder bool) error {
	byName := make(map[string]sasl.Mechanism, len(candidates))
	names := make([]string, 0, len(candidates))
	for _, m := range candidates {
		byName[m.Name()] = m
		names = append(names, m.Name())
	}
	negotiated := s.info.NegotiateMechanisms(names, preferServerOrder)
	if len(negotiated) == 0 {
		return &Error{Kind: NoCompatibleMechanism}
	}

	var lastErr error
	for _, name := range negotiated {
		err := s.driveMechanism(byName[name])
		if err == nil {
			s.cfg.Metrics.Auth(name, true)
			return nil
		}
		s.cfg.Metrics.Auth(name, false)
		lastErr = err
		if dkimErr, ok := err.(*Error); !ok || dkimErr.Kind != AuthFailed {
			// Network/Protocol/TooManyChallenges break the session; further
			// mechanisms cannot be tried over a dead connection.
			return err
		}
	}
	return lastErr
}

// driveMechanism runs one full AUTH exchange for m, per §4.5:
//  1. emit AUTH <MECH>[ <initial-response>] if m supports one;
//  2. while the server replies 334, feed the decoded challenge to m and
//     send its encoded reply, capped at challengeCap round trips;
//  3. a 235 reply authenticates the session; if m has not yet signalled
//     done, it is stepped once more with an empty input to preserve its
//     security contract; 4yz/5yz is reported as AuthFailed, non-fatal to
//     the session.
func (s *Session) driveMechanism(m sasl.Mechanism) error {
	var initial []byte
	finished := false
	if m.SupportsInitialResponse() {
		tok, done, err := m.Step(nil)
		if err != nil {
			return &Error{Kind: AuthFailed, Mechanism: m.Name(), Err: err}
		}
		initial, finished = tok, done
	}

	encodedInitial := ""
	if initial != nil {
		encodedInitial = base64.StdEncoding.EncodeToString(initial)
		if encodedInitial == "" {
			// RFC 4954: an empty initial response is sent as "=".
			encodedInitial = "="
		}
	}
	resp, err := s.sendCommand(smtpcmd.AUTH(m.Name(), encodedInitial))
	if err != nil {
		return err
	}

	for challenges := 0; resp.Code == 334; challenges++ {
		if challenges >= challengeCap {
			s.toBroken()
			return &Error{Kind: TooManyChallenges, Mechanism: m.Name()}
		}
		challenge, decErr := base64.StdEncoding.DecodeString(resp.Message())
		if decErr != nil {
			s.toBroken()
			return &Error{Kind: Protocol, Err: decErr}
		}
		// A mechanism that has already finished is not stepped again; further
		// challenges get an empty response until the cap is reached.
		var tok []byte
		if !finished {
			var done bool
			var stepErr error
			tok, done, stepErr = m.Step(challenge)
			if stepErr != nil {
				return &Error{Kind: AuthFailed, Mechanism: m.Name(), Err: stepErr}
			}
			finished = done
		}
		resp, err = s.sendCommand(smtpcmd.ChallengeResponse(base64.StdEncoding.EncodeToString(tok)))
		if err != nil {
			return err
		}
	}

	switch resp.Code / 100 {
	case 2:
		if !finished {
			if _, _, err := m.Step(nil); err != nil {
				s.toBroken()
				return &Error{Kind: Protocol, Err: err}
			}
		}
		s.state = Authenticated
		s.authenticated = true
		return nil
	case 4, 5:
		return &Error{Kind: AuthFailed, Mechanism: m.Name(), Response: resp}
	default:
		s.toBroken()
		return &Error{Kind: Protocol, Response: resp}
	}
}
