// Package pool maintains a bounded set of reusable smtpclient.Session
// connections keyed by destination, grounded on laitos's inet.sendMailWithRetry
// (which redials for every message) generalized into a keep-alive pool as
// described by SPEC_FULL.md §4.7: sessions are validated with NOOP before
// reuse, discarded once Broken, and rate-limited per destination host so a
// burst of sends to one domain does not look like a spam run.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/mailforge/mailforge/ratelimit"
	"github.com/mailforge/mailforge/smtpclient"
)

// Dialer opens a new, Greeted+EHLO'd Session to host:port. Pool calls it on
// a cache miss or when a pooled session fails validation.
type Dialer func(ctx context.Context, host string, port int) (*smtpclient.Session, error)

// Config configures a Pool.
type Config struct {
	Dial Dialer
	// MaxPerDestination bounds how many idle sessions are kept per
	// (host, port); additional Put calls close the session instead of
	// keeping it.
	MaxPerDestination int
	// RateLimit, when non-nil, bounds how many Get calls per its own
	// configured window may proceed per destination host; callers beyond
	// the limit receive ErrRateLimited.
	RateLimit *ratelimit.RateLimit
}

// ErrRateLimited is returned by Get when the destination host has exceeded
// its configured rate limit.
var ErrRateLimited = fmt.Errorf("pool: destination host rate limit exceeded")

// Pool hands out validated, idle *smtpclient.Session values keyed by
// (host, port), dialing fresh ones as needed and discarding any that turn
// out to be Broken.
type Pool struct {
	cfg Config

	mu   sync.Mutex
	idle map[key][]*smtpclient.Session
}

type key struct {
	host string
	port int
}

// New builds a Pool. cfg.Dial must be set; cfg.MaxPerDestination defaults to
// 4 when zero or negative.
func New(cfg Config) *Pool {
	if cfg.MaxPerDestination <= 0 {
		cfg.MaxPerDestination = 4
	}
	return &Pool{cfg: cfg, idle: make(map[key][]*smtpclient.Session)}
}

// Get returns a validated, idle session for host:port, reusing a pooled one
// if available and still responsive to NOOP, otherwise dialing a fresh one
// via cfg.Dial. The caller must return the session with Put when done.
func (p *Pool) Get(ctx context.Context, host string, port int) (*smtpclient.Session, error) {
	if p.cfg.RateLimit != nil && !p.cfg.RateLimit.Add(host, true) {
		return nil, ErrRateLimited
	}

	k := key{host, port}
	for {
		sess := p.popIdle(k)
		if sess == nil {
			break
		}
		if sess.State() == smtpclient.Broken {
			_ = sess.Close()
			continue
		}
		if err := sess.TestConnected(); err != nil {
			_ = sess.Close()
			continue
		}
		return sess, nil
	}
	return p.cfg.Dial(ctx, host, port)
}

// Put returns a session to the pool for reuse, unless it is Broken (closed
// instead) or the destination's pool is already at MaxPerDestination
// (closed instead, oldest-keeps semantics: the new session loses).
func (p *Pool) Put(host string, port int, sess *smtpclient.Session) {
	if sess == nil {
		return
	}
	if sess.State() == smtpclient.Broken {
		_ = sess.Close()
		return
	}

	k := key{host, port}
	p.mu.Lock()
	if len(p.idle[k]) >= p.cfg.MaxPerDestination {
		p.mu.Unlock()
		_ = sess.Close()
		return
	}
	p.idle[k] = append(p.idle[k], sess)
	p.mu.Unlock()
}

// CloseAll closes every idle session currently held by the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, sessions := range p.idle {
		for _, sess := range sessions {
			_ = sess.Close()
		}
		delete(p.idle, k)
	}
}

func (p *Pool) popIdle(k key) *smtpclient.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	sessions := p.idle[k]
	if len(sessions) == 0 {
		return nil
	}
	sess := sessions[len(sessions)-1]
	p.idle[k] = sessions[:len(sessions)-1]
	return sess
}
