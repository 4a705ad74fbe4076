// Package tracing wraps engine operations in AWS X-Ray segments (the same
// aws-xray-sdk-go library laitos wires into its AWS clients via xray.AWS and
// into its HTTP server via xray.Handler). Tracing is injected, never
// required: absent an X-Ray daemon or a segment already present on the
// context, xray.Capture runs fn and discards the (logged, ignored) missing
// segment error, mirroring laitos's own ContextMissingStrategy of ignoring
// rather than panicking.
package tracing

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

func init() {
	_ = xray.Configure(xray.Config{ContextMissingStrategy: ignoreMissingSegment{}})
}

type ignoreMissingSegment struct{}

func (ignoreMissingSegment) ContextMissing(v interface{}) {}

// Capture runs fn inside an X-Ray subsegment named name. When ctx carries no
// X-Ray segment, the wrapped call still runs; only the tracing annotation is
// skipped.
func Capture(ctx context.Context, name string, fn func(context.Context) error) error {
	return xray.Capture(ctx, name, fn)
}

// Names for traced operations (§6b). This module captures Dial, Data and
// DKIMSign; EHLO, StartTLS and Auth are not captured by any code here and
// are available to callers that wrap those steps themselves.
const (
	Dial     = "smtp.dial"
	EHLO     = "smtp.ehlo"
	StartTLS = "smtp.starttls"
	Auth     = "smtp.auth"
	Data     = "smtp.data"
	DKIMSign = "dkim.sign"
)
