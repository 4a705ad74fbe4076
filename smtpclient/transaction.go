package smtpclient

import (
	"context"
	"time"

	"github.com/mailforge/mailforge/mailaddr"
	"github.com/mailforge/mailforge/smtpbody"
	"github.com/mailforge/mailforge/smtpcmd"
	"github.com/mailforge/mailforge/smtpresponse"
	"github.com/mailforge/mailforge/tracing"
)

// SendOptions configures one MAIL/RCPT/DATA transaction.
type SendOptions struct {
	EightBitMIME bool
	// CollectRCPTFailures, when true, treats a 4yz RCPT reply as a partial
	// failure recorded in TransactionResult.Rejected rather than aborting
	// the whole transaction (§4.5 "Mail transaction").
	CollectRCPTFailures bool
}

// RecipientFailure pairs a rejected recipient with the reply that rejected
// it.
type RecipientFailure struct {
	Address  mailaddr.Address
	Response smtpresponse.Response
}

// TransactionResult reports the outcome of Send.
type TransactionResult struct {
	Accepted []mailaddr.Address
	Rejected []RecipientFailure
	Final    smtpresponse.Response
}

// Send runs one MAIL FROM / RCPT TO* / DATA transaction. Any non-2yz reply
// to MAIL, an unrecoverable RCPT reply, or the final DATA reply aborts the
// transaction: RSET is issued (best-effort) and the session returns to its
// prior idle state (Capable or Authenticated) rather than Broken, per §7
// ("PermanentCode/TransientCode during a transaction trigger RSET and keep
// the session usable"). A non-ASCII envelope without SMTPUTF8 advertised,
// or a body exceeding the advertised SIZE, is rejected before any command
// is sent.
func (s *Session) Send(ctx context.Context, env mailaddr.Envelope, body []byte, opts SendOptions) (*TransactionResult, error) {
	var result *TransactionResult
	err := tracing.Capture(ctx, tracing.Data, func(context.Context) error {
		r, err := s.send(env, body, opts)
		result = r
		return err
	})
	return result, err
}

func (s *Session) send(env mailaddr.Envelope, body []byte, opts SendOptions) (*TransactionResult, error) {
	if s.state != Capable && s.state != Authenticated {
		s.toBroken()
		return nil, &Error{Kind: Protocol, Err: errWrongState}
	}

	if env.IsUTF8() && !s.info.SMTPUTF8 {
		return nil, &Error{Kind: FeatureUnsupported, Err: errSMTPUTF8Required}
	}
	if s.info.HasSizeLimit() && len(body) > s.info.SizeLimit {
		return nil, &Error{Kind: MessageTooLarge}
	}

	reverse := ""
	if env.From != nil {
		reverse = env.From.String()
	}
	mailParams := smtpcmd.MailParams{EightBitMIME: opts.EightBitMIME, SMTPUTF8: env.IsUTF8(), Size: len(body)}
	mailLine, err := smtpcmd.MAIL(reverse, mailParams, s.info.SMTPUTF8, s.info.EightBitMIME)
	if err != nil {
		return nil, &Error{Kind: FeatureUnsupported, Err: err}
	}

	resp, err := s.sendCommand(mailLine)
	if err != nil {
		return nil, err
	}
	if !resp.IsPositive() {
		return nil, s.abortTransaction(resp)
	}
	s.state = InTransaction

	result := &TransactionResult{}
	for _, to := range env.To {
		rcptLine, err := smtpcmd.RCPT(to.String(), s.info.SMTPUTF8)
		if err != nil {
			s.reportAndIdle()
			return nil, &Error{Kind: FeatureUnsupported, Err: err}
		}
		resp, err := s.sendCommand(rcptLine)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.IsPositive():
			result.Accepted = append(result.Accepted, to)
		case resp.Code/100 == 4 && opts.CollectRCPTFailures:
			result.Rejected = append(result.Rejected, RecipientFailure{Address: to, Response: resp})
		default:
			return nil, s.abortTransaction(resp)
		}
	}
	if len(result.Accepted) == 0 {
		return nil, s.abortTransaction(smtpresponse.Response{})
	}

	dataResp, err := s.sendCommand(smtpcmd.DATA())
	if err != nil {
		return nil, err
	}
	if dataResp.Code != 354 {
		return nil, s.abortTransaction(dataResp)
	}

	wire := smtpbody.EncodeDATA(body)
	if err := s.transport.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		_, ferr := s.networkFail(err)
		return nil, ferr
	}
	if _, err := s.transport.Write(wire); err != nil {
		_, ferr := s.networkFail(err)
		return nil, ferr
	}
	s.cfg.Metrics.DataBytesWritten(len(wire))

	final, err := s.readResponse()
	if err != nil {
		return nil, err
	}
	result.Final = final
	if !final.IsPositive() {
		s.cfg.Metrics.Transaction(replyClass(final.Code))
		s.reportAndIdle()
		return result, classifyCodeError(final)
	}
	s.cfg.Metrics.Transaction(replyClass(final.Code))
	s.backToIdle()
	return result, nil
}

// abortTransaction issues a best-effort RSET and returns to the idle state,
// then classifies resp (or a zero Response, for client-side rejections that
// never reached the wire) into the matching §7 error.
func (s *Session) abortTransaction(resp smtpresponse.Response) error {
	s.reportAndIdle()
	if len(resp.Lines) == 0 {
		return &Error{Kind: PermanentCode}
	}
	return classifyCodeError(resp)
}

func (s *Session) reportAndIdle() {
	_, _ = s.sendCommand(smtpcmd.RSET())
	if s.state != Broken {
		s.backToIdle()
	}
}

func classifyCodeError(resp smtpresponse.Response) error {
	if resp.Code/100 == 4 {
		return &Error{Kind: TransientCode, Response: resp}
	}
	return &Error{Kind: PermanentCode, Response: resp}
}

func replyClass(code int) string {
	switch code / 100 {
	case 2:
		return "2yz"
	case 4:
		return "4yz"
	default:
		return "5yz"
	}
}

var errWrongState = staticErr("smtpclient: session must be Capable or Authenticated to send")
var errSMTPUTF8Required = staticErr("smtpclient: envelope requires SMTPUTF8 but server did not advertise it")

func staticErr(msg string) error { return &protocolStaticError{msg} }
