package smtpclient

import (
	"crypto/tls"
	"net"
	"time"
)

// transport is the tagged variant the design notes call for: a plain
// net.Conn that can be upgraded in place to a *tls.Conn, so callers above it
// see one stable read/write surface across the STARTTLS transition instead
// of juggling two connection objects.
type transport struct {
	conn      net.Conn
	tlsConn   *tls.Conn
	encrypted bool
}

func newTransport(conn net.Conn) *transport {
	return &transport{conn: conn}
}

func (t *transport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *transport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *transport) Close() error                { return t.conn.Close() }

func (t *transport) SetDeadline(d time.Time) error {
	return t.conn.SetDeadline(d)
}

// upgrade performs a TLS client handshake over the current plain
// connection and, on success, replaces conn with the TLS-wrapped one. SNI
// is taken from cfg.ServerName, which callers set to the server hostname.
func (t *transport) upgrade(cfg *tls.Config) error {
	tlsConn := tls.Client(t.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	t.conn = tlsConn
	t.tlsConn = tlsConn
	t.encrypted = true
	return nil
}

// connectionState returns the negotiated TLS state and true, or a zero
// value and false if the transport is not encrypted. Callers use this to
// retrieve the peer certificate for pinning (§6 "TLS").
func (t *transport) connectionState() (tls.ConnectionState, bool) {
	if t.tlsConn == nil {
		return tls.ConnectionState{}, false
	}
	return t.tlsConn.ConnectionState(), true
}
