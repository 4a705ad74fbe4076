// Package ses implements transport.Transport by submitting the formatted
// message through Amazon SES's SendRawEmail API instead of speaking SMTP
// directly, grounded on laitos's awsinteg.NewS3Client/S3Client.Upload
// (session construction, xray.AWS instrumentation, lalog.Logger field,
// WithContext + timing) generalized from S3 to SES per SPEC_FULL.md §4.5b.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/mailforge/mailforge/lalog"
	"github.com/mailforge/mailforge/mailaddr"
	"github.com/mailforge/mailforge/smtpclient"
	"github.com/mailforge/mailforge/tracing"
	"github.com/mailforge/mailforge/transport"
)

// Transport sends raw messages via Amazon SES's SendRawEmail API.
type Transport struct {
	client *ses.SES
	logger *lalog.Logger
}

// New builds a Transport for the given AWS region, instrumented with X-Ray
// the same way awsinteg.NewS3Client wires its S3 client.
func New(region string, logger *lalog.Logger) (*Transport, error) {
	if region == "" {
		return nil, fmt.Errorf("ses: region must not be empty")
	}
	apiSession, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	client := ses.New(apiSession)
	xray.AWS(client.Client)
	return &Transport{client: client, logger: logger}, nil
}

// Send submits env and body through SendRawEmailWithContext. SES either
// accepts the whole message for all recipients or rejects it outright, so a
// successful call always reports every recipient Accepted; Rejected is
// always empty for this transport (see transport.Result).
func (t *Transport) Send(ctx context.Context, env mailaddr.Envelope, body []byte) (*transport.Result, error) {
	var result *transport.Result
	err := tracing.Capture(ctx, tracing.Data, func(ctx context.Context) error {
		r, err := t.send(ctx, env, body)
		result = r
		return err
	})
	return result, err
}

func (t *Transport) send(ctx context.Context, env mailaddr.Envelope, body []byte) (*transport.Result, error) {
	destinations := make([]*string, 0, len(env.To))
	for _, to := range env.To {
		destinations = append(destinations, aws.String(to.String()))
	}

	source := ""
	if env.From != nil {
		source = env.From.String()
	}

	t.logf("Send: submitting message for %s to %d recipient(s)", source, len(destinations))
	startTimeNano := time.Now().UnixNano()
	_, err := t.client.SendRawEmailWithContext(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(source),
		Destinations: destinations,
		RawMessage:   &ses.RawMessage{Data: bytes.TrimRight(body, "\x00")},
	})
	durationMilli := (time.Now().UnixNano() - startTimeNano) / 1000000
	t.logf("Send: SendRawEmailWithContext completed in %d milliseconds (err? %v)", durationMilli, err)
	if err != nil {
		return nil, classifyAWSError(err)
	}
	return &transport.Result{Accepted: env.To}, nil
}

func (t *Transport) logf(template string, values ...interface{}) {
	if t.logger == nil {
		return
	}
	t.logger.Info("ses", nil, template, values...)
}

// classifyAWSError maps an AWS SDK error into the smtpclient error taxonomy
// (§7): a RequestFailure's retryability distinguishes a transient service
// condition (TransientCode, e.g. throttling) from a permanent rejection
// (PermanentCode, e.g. MessageRejected); anything else (DNS failure,
// connection refused) is Network.
func classifyAWSError(err error) error {
	reqErr, ok := err.(awserr.RequestFailure)
	if !ok {
		return &smtpclient.Error{Kind: smtpclient.Network, Err: err}
	}
	if isRetryableStatus(reqErr.StatusCode()) {
		return &smtpclient.Error{Kind: smtpclient.TransientCode, Err: reqErr}
	}
	return &smtpclient.Error{Kind: smtpclient.PermanentCode, Err: reqErr}
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
