// Package smtpclient drives one SMTP submission session through the state
// machine described by the spec: connect, greeting, EHLO, optional
// STARTTLS, optional SASL authentication, a MAIL/RCPT/DATA transaction, and
// QUIT. It is grounded on laitos's inet.dialMTA/sendMail (inet/mail_client.go)
// generalized from a one-shot helper into a reusable, poolable session type
// with the full ESMTP/SASL/TLS-upgrade contract the spec requires.
package smtpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mailforge/mailforge/smtpcmd"
	"github.com/mailforge/mailforge/smtpext"
	"github.com/mailforge/mailforge/smtpresponse"
	"github.com/mailforge/mailforge/tracing"
)

// Session is one connection to an SMTP server, carried through the state
// machine described in the spec. A Session is not safe for concurrent use:
// commands and replies are strictly serialized (§5).
type Session struct {
	cfg       Config
	transport *transport
	reader    *bufio.Reader
	parser    *smtpresponse.Parser

	state         State
	authenticated bool
	info          smtpext.ServerInfo
}

// newSession wraps an already-established connection (real or, in tests, a
// net.Pipe half) in a Session, performing the TLSImplicit handshake if
// configured. The returned Session is in state Connected; the caller is
// responsible for reading the greeting.
func newSession(cfg Config, conn net.Conn) (*Session, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	t := newTransport(conn)
	if cfg.TLSPolicy == TLSImplicit {
		if err := t.upgrade(cfg.tlsConfig()); err != nil {
			conn.Close()
			return nil, &Error{Kind: Tls, Err: err}
		}
	}
	return &Session{
		cfg:       cfg,
		transport: t,
		reader:    bufio.NewReader(t),
		parser:    smtpresponse.NewParser(),
		state:     Connected,
	}, nil
}

// Dial opens a TCP connection to cfg.Host:cfg.Port, optionally performs an
// immediate TLS handshake (TLSImplicit), and reads the server's greeting.
// On success the returned Session is in state Greeted.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	var s *Session
	err := tracing.Capture(ctx, tracing.Dial, func(ctx context.Context) error {
		var err error
		s, err = dial(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg.logf("Dial: connecting")
	cfg.Metrics.ConnectionAttempted()

	dialer := &net.Dialer{Timeout: cfg.Timeout, LocalAddr: cfg.LocalAddr}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		cfg.Metrics.ConnectionFailed()
		return nil, &Error{Kind: Network, Err: err}
	}

	s, err := newSession(cfg, conn)
	if err != nil {
		cfg.Metrics.ConnectionFailed()
		return nil, err
	}

	resp, err := s.readResponse()
	if err != nil {
		cfg.Metrics.ConnectionFailed()
		return nil, err
	}
	if !resp.IsPositive() {
		s.toBroken()
		cfg.Metrics.ConnectionFailed()
		cfg.Metrics.GreetingFailed()
		return nil, &Error{Kind: Greeting, Response: resp}
	}
	s.state = Greeted
	cfg.Metrics.ConnectionSucceeded()
	return s, nil
}

// State reports the session's current position in the state machine.
func (s *Session) State() State { return s.state }

// ServerInfo returns the capability set derived from the most recent EHLO
// reply.
func (s *Session) ServerInfo() smtpext.ServerInfo { return s.info }

// Encrypted reports whether the transport has been upgraded to TLS, either
// implicitly at Dial or via StartTLS.
func (s *Session) Encrypted() bool { return s.transport.encrypted }

// ConnectionState returns the negotiated TLS handshake state, including the
// server's certificate chain, and true. It returns a zero value and false if
// the session is not encrypted. Callers use this for DANE/TLSA pinning
// (mxlookup.VerifyPeerCertificate) or to inspect the peer certificate after
// the fact (§6 "TLS").
func (s *Session) ConnectionState() (tls.ConnectionState, bool) {
	return s.transport.connectionState()
}

// EHLO sends EHLO with the configured client identity and, on a 250 reply,
// replaces ServerInfo wholesale with the capabilities just advertised
// (§9 "cyclic coupling" design note: ServerInfo is a plain value, never
// merged).
func (s *Session) EHLO() error {
	resp, err := s.sendCommand(smtpcmd.EHLO(s.cfg.Identity))
	if err != nil {
		return err
	}
	if resp.Code != 250 {
		s.toBroken()
		return &Error{Kind: Protocol, Response: resp}
	}
	s.info = smtpext.FromEHLO(resp)
	if s.state < Capable {
		s.state = Capable
	}
	return nil
}

// StartTLS upgrades the session to TLS per the configured policy. It is a
// no-op if the transport is already encrypted or TLSPolicy is TLSNone. If
// the server did not advertise STARTTLS, TLSRequired fails with Tls while
// TLSOpportunistic silently proceeds in plaintext. On a successful upgrade,
// ServerInfo is discarded and EHLO is re-issued over the encrypted channel.
func (s *Session) StartTLS() error {
	if s.transport.encrypted || s.cfg.TLSPolicy == TLSNone {
		return nil
	}
	if !s.info.StartTLS {
		s.cfg.Metrics.StartTLSSkipped()
		if s.cfg.TLSPolicy == TLSRequired {
			return &Error{Kind: Tls, Err: errStartTLSUnavailable}
		}
		return nil
	}

	resp, err := s.sendCommand(smtpcmd.STARTTLS())
	if err != nil {
		return err
	}
	if resp.Code != 220 {
		s.cfg.Metrics.StartTLSFailed()
		if s.cfg.TLSPolicy == TLSRequired {
			s.toBroken()
			return &Error{Kind: Tls, Response: resp}
		}
		return nil
	}

	if err := s.transport.upgrade(s.cfg.tlsConfig()); err != nil {
		s.cfg.Metrics.StartTLSFailed()
		s.toBroken()
		return &Error{Kind: Tls, Err: err}
	}
	s.cfg.Metrics.StartTLSUpgraded()
	s.info = smtpext.ServerInfo{}
	return s.EHLO()
}

// TestConnected issues NOOP and reports whether the server responded
// positively. Connection pools use this to validate an idle session before
// reuse (§4.5 "Keep-alive / pooling").
func (s *Session) TestConnected() error {
	resp, err := s.sendCommand(smtpcmd.NOOP())
	if err != nil {
		return err
	}
	if !resp.IsPositive() {
		s.toBroken()
		return &Error{Kind: Protocol, Response: resp}
	}
	return nil
}

// Reset issues RSET, returning the session to Capable or Authenticated
// (whichever it was authenticated to before any in-progress transaction).
func (s *Session) Reset() error {
	resp, err := s.sendCommand(smtpcmd.RSET())
	if err != nil {
		return err
	}
	if !resp.IsPositive() {
		s.toBroken()
		return &Error{Kind: Protocol, Response: resp}
	}
	s.backToIdle()
	return nil
}

// Close ends the session. A Broken session's socket is shut directly
// without sending QUIT; otherwise QUIT is sent best-effort (its reply, if
// any, is ignored) before the transport is closed.
func (s *Session) Close() error {
	if s.state == Broken {
		return s.transport.Close()
	}
	_, _ = s.sendCommand(smtpcmd.QUIT())
	s.state = Disconnected
	return s.transport.Close()
}

func (s *Session) backToIdle() {
	if s.authenticated {
		s.state = Authenticated
	} else {
		s.state = Capable
	}
}

func (s *Session) toBroken() {
	s.state = Broken
	_ = s.transport.Close()
}

// sendCommand writes a pre-rendered command line and returns the assembled
// reply. Every read and write is preceded by resetting the deadline to
// cfg.Timeout, so cumulative time per command is bounded regardless of how
// many lines a multi-line reply spans (§5 "Timeouts").
func (s *Session) sendCommand(line string) (smtpresponse.Response, error) {
	s.cfg.logf("C: %s", strings.TrimSuffix(line, "\r\n"))
	if err := s.transport.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return s.networkFail(err)
	}
	if _, err := s.transport.Write([]byte(line)); err != nil {
		return s.networkFail(err)
	}
	return s.readResponse()
}

func (s *Session) readResponse() (smtpresponse.Response, error) {
	s.parser.Reset()
	for {
		if err := s.transport.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
			return s.networkFail(err)
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return s.networkFail(err)
		}
		line = strings.TrimRight(line, "\r\n")
		s.cfg.logf("S: %s", line)
		status, perr := s.parser.ConsumeLine(line)
		if perr != nil {
			s.toBroken()
			return smtpresponse.Response{}, &Error{Kind: Protocol, Err: perr}
		}
		if status == smtpresponse.Complete {
			return s.parser.Response(), nil
		}
	}
}

func (s *Session) networkFail(err error) (smtpresponse.Response, error) {
	s.toBroken()
	return smtpresponse.Response{}, &Error{Kind: Network, Err: err}
}

// defaultTimeout applies when Config.Timeout is unset, matching the order
// of magnitude of laitos's own MailIOTimeoutSec.
const defaultTimeout = 30 * time.Second

var errStartTLSUnavailable = &protocolStaticError{"smtpclient: STARTTLS required but not advertised by server"}

type protocolStaticError struct{ msg string }

func (e *protocolStaticError) Error() string { return e.msg }
