package dkim

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/mailforge/mailforge/message"
	"github.com/mailforge/mailforge/metrics"
	"github.com/mailforge/mailforge/tracing"
)

// SignWithContext wraps Sign in an "dkim.sign" X-Ray segment (§6b) and, when
// mc is non-nil, records the outcome on its DKIMSignTotal counter. Callers
// that thread a tracing-enabled context through message submission get a
// segment for the signing step same as they do for dial/data. Absent a
// tracing context, the segment is a no-op; a nil mc disables metrics.
func SignWithContext(ctx context.Context, msg *message.Message, cfg Config, timestamp time.Time, mc *metrics.Collectors) error {
	err := tracing.Capture(ctx, tracing.DKIMSign, func(context.Context) error {
		return Sign(msg, cfg, timestamp)
	})
	mc.DKIMSign(err == nil)
	return err
}

// Sign computes and appends a DKIM-Signature header to msg, per RFC 6376
// (and RFC 8463 for Ed25519-SHA256). timestamp is the wall-clock time
// recorded in the signature's t= tag.
func Sign(msg *message.Message, cfg Config, timestamp time.Time) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	bodyHash := sha256.Sum256(canonicalizeBody(msg.Body, cfg.BodyCanon))
	bh := base64.StdEncoding.EncodeToString(bodyHash[:])

	var headerBlock strings.Builder
	var signedNames []string
	for _, name := range cfg.HeaderNames {
		value, ok := msg.Last(name)
		if !ok {
			continue
		}
		headerBlock.WriteString(canonicalizeHeader(name, value, cfg.HeaderCanon))
		signedNames = append(signedNames, headerNameForList(name, cfg.HeaderCanon))
	}

	ts := timestamp.Unix()
	sigName := dkimHeaderName(cfg.HeaderCanon)

	provisional := buildTags(cfg, ts, signedNames, bh, "")
	canonSig := canonicalizeHeader(sigName, provisional, cfg.HeaderCanon)
	canonSig = strings.TrimSuffix(canonSig, "\r\n")

	signingInput := headerBlock.String() + canonSig
	digest := sha256.Sum256([]byte(signingInput))

	var opts crypto.SignerOpts
	if cfg.Algorithm == RSA {
		opts = crypto.SHA256
	} else {
		opts = crypto.Hash(0)
	}
	sig, err := cfg.PrivateKey.Sign(rand.Reader, digest[:], opts)
	if err != nil {
		return &Error{Kind: SignFailed, Err: err}
	}
	b := base64.StdEncoding.EncodeToString(sig)

	final := buildTags(cfg, ts, signedNames, bh, b)
	msg.AppendHeader(sigName, final)
	return nil
}

func buildTags(cfg Config, ts int64, signedNames []string, bh, b string) string {
	return fmt.Sprintf(
		"v=1; a=%s-sha256; d=%s; s=%s; c=%s/%s; q=dns/txt; t=%d; h=%s; bh=%s; b=%s",
		cfg.Algorithm.tag(), cfg.Domain, cfg.Selector,
		cfg.HeaderCanon, cfg.BodyCanon, ts,
		strings.Join(signedNames, ":"), bh, b,
	)
}
