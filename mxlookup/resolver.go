// Package mxlookup resolves the destination host for a recipient domain and
// its opportunistic DANE/TLSA pin, grounded on laitos's inet.dialMTA (which
// resolves MX records via the OS resolver before dialing) generalized into a
// standalone component built directly on github.com/miekg/dns so the engine
// controls the query, timeout, and server selection itself.
package mxlookup

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/miekg/dns"
)

// Target is one candidate destination host for a domain, in the order the
// engine should try them.
type Target struct {
	Host       string
	Preference uint16
}

// TLSAPolicy names how a caller treats a resolved TLSA record. No function in
// this package takes a TLSAPolicy: LookupTLSA behaves the same under either
// value, and failing a connection when no record is published is up to the
// caller.
type TLSAPolicy int

const (
	// DANEOpportunistic names the policy under which an absent TLSA record
	// is acceptable.
	DANEOpportunistic TLSAPolicy = iota
	// DANERequired names the policy under which an absent TLSA record is
	// not acceptable.
	DANERequired
)

// Resolver queries MX and TLSA records over a configured DNS server. A zero
// value is not usable; construct with NewResolver.
type Resolver struct {
	client *dns.Client
	server string
}

// NewResolver builds a Resolver that sends queries to server (host:port,
// e.g. "8.8.8.8:53") with the given per-query timeout.
func NewResolver(server string, timeout time.Duration) *Resolver {
	return &Resolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

// LookupMX queries MX records for domain and returns them sorted by
// preference, lowest (most preferred) first; targets sharing a preference
// are shuffled so load is spread across equally-ranked hosts (§4.5a point 2).
// If domain publishes no MX records, it is itself a valid implicit target
// per RFC 5321 §5.1, and LookupMX returns a single Target naming domain.
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]Target, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("mxlookup: MX query for %s failed: %w", domain, err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("mxlookup: MX query for %s returned %s", domain, dns.RcodeToString[reply.Rcode])
	}

	var targets []Target
	for _, rr := range reply.Answer {
		mx, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		targets = append(targets, Target{Host: strip(mx.Mx), Preference: mx.Preference})
	}
	if len(targets) == 0 {
		return []Target{{Host: domain, Preference: 0}}, nil
	}

	shuffleEqualPreference(targets)
	return targets, nil
}

// LookupTLSA queries the TLSA record published at _<port>._tcp.<host> (RFC
// 7672 §3) and returns it unparsed. A nil, nil return means no record was
// published, which is not an error under DANEOpportunistic.
func (r *Resolver) LookupTLSA(ctx context.Context, host string, port int) (*dns.TLSA, error) {
	name := fmt.Sprintf("_%d._tcp.%s", port, dns.Fqdn(host))
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTLSA)
	msg.RecursionDesired = true

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("mxlookup: TLSA query for %s failed: %w", name, err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, nil
	}
	for _, rr := range reply.Answer {
		if tlsa, ok := rr.(*dns.TLSA); ok {
			return tlsa, nil
		}
	}
	return nil, nil
}

func strip(fqdn string) string {
	if len(fqdn) > 0 && fqdn[len(fqdn)-1] == '.' {
		return fqdn[:len(fqdn)-1]
	}
	return fqdn
}

// shuffleEqualPreference sorts by ascending preference, then shuffles within
// each run of equal preference in place.
func shuffleEqualPreference(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Preference < targets[j].Preference })
	start := 0
	for i := 1; i <= len(targets); i++ {
		if i == len(targets) || targets[i].Preference != targets[start].Preference {
			run := targets[start:i]
			rand.Shuffle(len(run), func(a, b int) { run[a], run[b] = run[b], run[a] })
			start = i
		}
	}
}
