// Package metrics instruments the engine with prometheus CounterVec and
// Counter collectors, registered on a caller-supplied
// prometheus.Registerer rather than the global default — the same reasoning
// laitos's httpd middleware follows (see daemon/httpd/middleware.go), since
// a process embedding more than one engine instance must not double-register
// the same collector names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every counter the engine and the SES
// transport may update (§6a). A nil *Collectors is never constructed by
// callers who don't want metrics; every call site in this module instead
// receives one only when the caller opted in, and every recording method
// below tolerates a nil receiver.
type Collectors struct {
	ConnectionsTotal  *prometheus.CounterVec // labels: outcome={attempted,succeeded,failed}
	GreetingFailures  prometheus.Counter
	StartTLSTotal     *prometheus.CounterVec // labels: outcome={upgraded,failed,skipped}
	AuthTotal         *prometheus.CounterVec // labels: mechanism, outcome={succeeded,failed}
	TransactionsTotal *prometheus.CounterVec // labels: outcome={2yz,4yz,5yz}
	DataBytesTotal    prometheus.Counter
	DKIMSignTotal     *prometheus.CounterVec // labels: outcome={succeeded,failed}
}

// NewCollectors builds a Collectors and registers every member on reg. Use
// a dedicated prometheus.NewRegistry() per engine instance, or the process
// registerer if only one instance ever runs.
func NewCollectors(reg prometheus.Registerer, namespace string) *Collectors {
	c := &Collectors{
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_total", Help: "SMTP connection attempts by outcome.",
		}, []string{"outcome"}),
		GreetingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "greeting_failures_total", Help: "Non-2yz server greetings.",
		}),
		StartTLSTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "starttls_total", Help: "STARTTLS upgrade attempts by outcome.",
		}, []string{"outcome"}),
		AuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_total", Help: "AUTH attempts by mechanism and outcome.",
		}, []string{"mechanism", "outcome"}),
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_total", Help: "MAIL/RCPT/DATA transactions by outcome.",
		}, []string{"outcome"}),
		DataBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "data_bytes_total", Help: "Bytes written during DATA.",
		}),
		DKIMSignTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dkim_sign_total", Help: "DKIM signing calls by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.ConnectionsTotal, c.GreetingFailures, c.StartTLSTotal, c.AuthTotal, c.TransactionsTotal, c.DataBytesTotal, c.DKIMSignTotal)
	return c
}

func (c *Collectors) connection(outcome string) {
	if c == nil {
		return
	}
	c.ConnectionsTotal.WithLabelValues(outcome).Inc()
}

// ConnectionAttempted records a dial attempt.
func (c *Collectors) ConnectionAttempted() { c.connection("attempted") }

// ConnectionSucceeded records a successful dial plus greeting.
func (c *Collectors) ConnectionSucceeded() { c.connection("succeeded") }

// ConnectionFailed records a dial or greeting failure.
func (c *Collectors) ConnectionFailed() { c.connection("failed") }

// GreetingFailed records a non-2yz greeting.
func (c *Collectors) GreetingFailed() {
	if c == nil {
		return
	}
	c.GreetingFailures.Inc()
}

func (c *Collectors) startTLS(outcome string) {
	if c == nil {
		return
	}
	c.StartTLSTotal.WithLabelValues(outcome).Inc()
}

// StartTLSUpgraded records a successful STARTTLS handshake.
func (c *Collectors) StartTLSUpgraded() { c.startTLS("upgraded") }

// StartTLSFailed records a STARTTLS command or handshake failure.
func (c *Collectors) StartTLSFailed() { c.startTLS("failed") }

// StartTLSSkipped records an opportunistic STARTTLS that was not attempted.
func (c *Collectors) StartTLSSkipped() { c.startTLS("skipped") }

// Auth records one AUTH attempt outcome for mechanism.
func (c *Collectors) Auth(mechanism string, succeeded bool) {
	if c == nil {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	c.AuthTotal.WithLabelValues(mechanism, outcome).Inc()
}

// Transaction records one MAIL/RCPT/DATA transaction's final reply class,
// one of "2yz", "4yz", "5yz".
func (c *Collectors) Transaction(replyClass string) {
	if c == nil {
		return
	}
	c.TransactionsTotal.WithLabelValues(replyClass).Inc()
}

// DataBytesWritten adds n to the running total of bytes written during DATA.
func (c *Collectors) DataBytesWritten(n int) {
	if c == nil {
		return
	}
	c.DataBytesTotal.Add(float64(n))
}

// DKIMSign records one DKIM signing call outcome.
func (c *Collectors) DKIMSign(succeeded bool) {
	if c == nil {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	c.DKIMSignTotal.WithLabelValues(outcome).Inc()
}
