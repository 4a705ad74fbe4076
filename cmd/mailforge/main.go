// Command mailforge sends one message through the submission engine, signing
// it with DKIM first if a private key is configured. It is a minimal
// demonstration of wiring smtpclient, dkim, mailaddr, and message together,
// in the flag-driven style of laitos's own command-line entry points.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/mailforge/mailforge/dkim"
	"github.com/mailforge/mailforge/lalog"
	"github.com/mailforge/mailforge/mailaddr"
	"github.com/mailforge/mailforge/message"
	"github.com/mailforge/mailforge/mxlookup"
	"github.com/mailforge/mailforge/smtpclient"
)

func main() {
	host := flag.String("host", "", "destination SMTP server host; when empty, resolved from the first recipient's MX records")
	port := flag.Int("port", 25, "destination SMTP server port")
	resolver := flag.String("resolver", "8.8.8.8:53", "DNS server used for MX resolution when -host is empty")
	identity := flag.String("identity", "localhost", "EHLO identity")
	from := flag.String("from", "", "envelope sender address")
	to := flag.String("to", "", "comma-separated envelope recipient addresses")
	subject := flag.String("subject", "", "message subject")
	bodyFile := flag.String("body", "", "path to the message body, or - for stdin")
	dkimKeyFile := flag.String("dkim-key", "", "path to a PEM private key; when set, the message is DKIM-signed before sending")
	dkimSelector := flag.String("dkim-selector", "default", "DKIM selector")
	dkimDomain := flag.String("dkim-domain", "", "DKIM signing domain (defaults to the sender's domain)")
	tlsPolicy := flag.String("tls", "opportunistic", "TLS policy: none, opportunistic, required, implicit")
	timeout := flag.Duration("timeout", 30*time.Second, "network timeout")
	flag.Parse()

	logger := &lalog.Logger{ComponentName: "mailforge"}

	if err := run(logger, runOptions{
		host: *host, port: *port, resolver: *resolver, identity: *identity,
		from: *from, to: *to, subject: *subject, bodyFile: *bodyFile,
		dkimKeyFile: *dkimKeyFile, dkimSelector: *dkimSelector, dkimDomain: *dkimDomain,
		tlsPolicy: *tlsPolicy, timeout: *timeout,
	}); err != nil {
		logger.Abort("main", err, "failed to send message")
	}
}

type runOptions struct {
	host, identity, resolver string
	port                     int
	from, to                 string
	subject, bodyFile        string
	dkimKeyFile              string
	dkimSelector, dkimDomain string
	tlsPolicy                string
	timeout                  time.Duration
}

func run(logger *lalog.Logger, opts runOptions) error {
	if opts.from == "" || opts.to == "" {
		return fmt.Errorf("mailforge: -from and -to are required")
	}

	bodyBytes, err := readBody(opts.bodyFile)
	if err != nil {
		return err
	}

	from, err := mailaddr.NewAddress(opts.from)
	if err != nil {
		return fmt.Errorf("mailforge: invalid -from: %w", err)
	}
	var recipients []mailaddr.Address
	for _, raw := range strings.Split(opts.to, ",") {
		addr, err := mailaddr.NewAddress(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("mailforge: invalid -to %q: %w", raw, err)
		}
		recipients = append(recipients, addr)
	}
	env, err := mailaddr.NewEnvelope(&from, recipients)
	if err != nil {
		return fmt.Errorf("mailforge: %w", err)
	}

	msg := message.New([]message.Header{
		{Name: "From", Value: from.String()},
		{Name: "To", Value: opts.to},
		{Name: "Subject", Value: opts.subject},
	}, bodyBytes)

	if opts.dkimKeyFile != "" {
		if err := signMessage(msg, from, opts); err != nil {
			return err
		}
	}

	policy, err := parseTLSPolicy(opts.tlsPolicy)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	targetHost := opts.host
	if targetHost == "" {
		targetHost, err = resolveHost(ctx, opts.resolver, recipients[0].Domain())
		if err != nil {
			return err
		}
		logger.Info("main", nil, "resolved MX host %s for domain %s", targetHost, recipients[0].Domain())
	}

	cfg := smtpclient.Config{
		Host: targetHost, Port: opts.port, Identity: opts.identity,
		Timeout: opts.timeout, TLSPolicy: policy, Logger: logger,
	}
	sess, err := smtpclient.Dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mailforge: dial: %w", err)
	}
	defer sess.Close()

	if err := sess.EHLO(); err != nil {
		return fmt.Errorf("mailforge: EHLO: %w", err)
	}
	if err := sess.StartTLS(); err != nil {
		return fmt.Errorf("mailforge: STARTTLS: %w", err)
	}

	result, err := sess.Send(ctx, env, msg.Bytes(), smtpclient.SendOptions{})
	if err != nil {
		return fmt.Errorf("mailforge: send: %w", err)
	}
	logger.Info("main", nil, "accepted by %d recipient(s), rejected %d", len(result.Accepted), len(result.Rejected))
	return nil
}

func signMessage(msg *message.Message, from mailaddr.Address, opts runOptions) error {
	keyBytes, err := ioutil.ReadFile(opts.dkimKeyFile)
	if err != nil {
		return fmt.Errorf("mailforge: reading -dkim-key: %w", err)
	}
	signer, algorithm, err := dkim.LoadPrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("mailforge: parsing -dkim-key: %w", err)
	}
	domain := opts.dkimDomain
	if domain == "" {
		domain = from.Domain()
	}
	cfg := dkim.Config{
		Domain: domain, Selector: opts.dkimSelector, Algorithm: algorithm, PrivateKey: signer,
		HeaderNames: []string{"From", "To", "Subject"},
	}
	return dkim.Sign(msg, cfg, time.Now())
}

func resolveHost(ctx context.Context, resolver, domain string) (string, error) {
	targets, err := mxlookup.NewResolver(resolver, 5*time.Second).LookupMX(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("mailforge: MX lookup for %s: %w", domain, err)
	}
	return targets[0].Host, nil
}

func readBody(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(path)
}

func parseTLSPolicy(name string) (smtpclient.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "none":
		return smtpclient.TLSNone, nil
	case "opportunistic":
		return smtpclient.TLSOpportunistic, nil
	case "required":
		return smtpclient.TLSRequired, nil
	case "implicit":
		return smtpclient.TLSImplicit, nil
	default:
		return 0, fmt.Errorf("mailforge: unknown -tls policy %q", name)
	}
}
