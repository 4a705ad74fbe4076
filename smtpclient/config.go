package smtpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/mailforge/mailforge/lalog"
	"github.com/mailforge/mailforge/metrics"
)

// Config configures Dial and the session it produces. A single Duration
// governs both read and write deadlines, applied before every operation, so
// that cumulative time per command is bounded (§5).
type Config struct {
	Host string
	Port int

	// LocalAddr optionally binds the outbound connection to a specific
	// local address, mirroring laitos's dialMTA local-IP rotation use case.
	LocalAddr net.Addr

	// Identity is the client's EHLO argument: a domain, or an IP literal
	// already wrapped in brackets (e.g. "[203.0.113.9]").
	Identity string

	Timeout time.Duration

	TLSPolicy TLSPolicy
	// TLSConfig supplies the base *tls.Config; a copy is used for each
	// handshake, with ServerName set to Host unless already set, since SNI
	// must track the server being dialed (§6 "TLS").
	TLSConfig *tls.Config

	// Logger receives a Printf-style trace of every command and reply.
	// A nil Logger disables logging, matching the design note that logging
	// is a cross-cutting collaborator, injected, never global state.
	Logger *lalog.Logger

	// Metrics, when non-nil, receives the counters described in §6a. A nil
	// value is a silent no-op at every call site.
	Metrics *metrics.Collectors

	// Transcript, when non-nil, receives a verbatim copy of every C:/S:
	// line alongside the Logger trace, bounded to its own configured size.
	// Callers keep their own reference to retrieve the latest wire bytes
	// of a session after the fact, e.g. to attach to a bug report for one
	// that ended up Broken.
	Transcript *lalog.ByteLogWriter
}

func (c Config) tlsConfig() *tls.Config {
	base := c.TLSConfig
	if base == nil {
		base = &tls.Config{}
	}
	cfg := base.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = c.Host
	}
	return cfg
}

func (c Config) logf(template string, values ...interface{}) {
	if c.Logger != nil {
		c.Logger.Info(c.Host, nil, template, values...)
	}
	if c.Transcript != nil {
		fmt.Fprintf(c.Transcript, template+"\n", values...)
	}
}
