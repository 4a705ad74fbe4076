// Package transport defines the pluggable Transport interface shared by the
// TCP/TLS submission engine (smtpclient.Session, via SMTPTransport) and the
// SES transport (transport/ses.Transport), per SPEC_FULL.md §4.5b: "a second
// Transport implementation alongside the raw-socket one, proving the
// pluggable transport claim". Both deliver the same mailaddr.Envelope and
// message bytes and report outcomes through the same smtpclient error
// taxonomy (§7), regardless of which wire protocol actually carried them.
package transport

import (
	"context"

	"github.com/mailforge/mailforge/mailaddr"
	"github.com/mailforge/mailforge/smtpclient"
)

// Transport delivers one message to its envelope recipients.
type Transport interface {
	Send(ctx context.Context, env mailaddr.Envelope, body []byte) (*Result, error)
}

// Result reports which recipients were accepted or rejected. For a
// transport that cannot distinguish per-recipient outcomes (SES, which
// accepts or rejects the whole call), Rejected is always empty: a failure
// is instead returned as an error.
type Result struct {
	Accepted []mailaddr.Address
	Rejected []RecipientFailure
}

// RecipientFailure pairs a rejected recipient with why it was rejected.
type RecipientFailure struct {
	Address mailaddr.Address
	Reason  error
}

// SMTPTransport adapts an already Capable/Authenticated *smtpclient.Session
// to the Transport interface, so callers can depend on Transport without
// caring whether delivery happens over raw SMTP or SES.
type SMTPTransport struct {
	Session *smtpclient.Session
	Options smtpclient.SendOptions
}

// Send runs one MAIL/RCPT/DATA transaction over the wrapped session.
func (t *SMTPTransport) Send(ctx context.Context, env mailaddr.Envelope, body []byte) (*Result, error) {
	txResult, err := t.Session.Send(ctx, env, body, t.Options)
	if err != nil {
		return nil, err
	}
	result := &Result{Accepted: txResult.Accepted}
	for _, rej := range txResult.Rejected {
		result.Rejected = append(result.Rejected, RecipientFailure{
			Address: rej.Address,
			Reason:  &smtpclient.Error{Kind: smtpclient.TransientCode, Response: rej.Response},
		})
	}
	return result, nil
}
