package pool

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mailforge/mailforge/ratelimit"
	"github.com/mailforge/mailforge/smtpclient"
)

// startFakeSMTPServer accepts connections on an ephemeral loopback port and
// answers every one with a 220 greeting, 250 EHLO, and 250 NOOP, closing on
// QUIT. It runs until the test ends.
func startFakeSMTPServer(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOneFakeConnection(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func serveOneFakeConnection(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("220 fake.example.com ESMTP\r\n")); err != nil {
		return
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "EHLO"):
			_, _ = conn.Write([]byte("250 fake.example.com\r\n"))
		case strings.HasPrefix(line, "NOOP"):
			_, _ = conn.Write([]byte("250 OK\r\n"))
		case strings.HasPrefix(line, "QUIT"):
			_, _ = conn.Write([]byte("221 Bye\r\n"))
			return
		default:
			_, _ = conn.Write([]byte("500 unrecognized\r\n"))
		}
	}
}

func dialerFor(host string, port int) Dialer {
	return func(ctx context.Context, dialHost string, dialPort int) (*smtpclient.Session, error) {
		cfg := smtpclient.Config{Host: dialHost, Port: dialPort, Identity: "client.example.com", Timeout: 2 * time.Second}
		sess, err := smtpclient.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := sess.EHLO(); err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func TestPoolDialsOnMiss(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	p := New(Config{Dial: dialerFor(host, port)})

	sess, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	require.Equal(t, smtpclient.Capable, sess.State())
}

func TestPoolReusesValidatedSession(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	var dialCount int
	p := New(Config{Dial: func(ctx context.Context, h string, pt int) (*smtpclient.Session, error) {
		dialCount++
		return dialerFor(host, port)(ctx, h, pt)
	}})

	sess, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	p.Put(host, port, sess)

	sess2, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	require.Same(t, sess, sess2)
	require.Equal(t, 1, dialCount)
}

func TestPoolDiscardsSessionThatFailsValidation(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	p := New(Config{Dial: dialerFor(host, port)})

	sess, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	_ = sess.Close() // simulate a dead peer: NOOP validation on the next Get must fail
	p.Put(host, port, sess)

	sess2, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	require.NotSame(t, sess, sess2)
}

func TestPoolEnforcesMaxPerDestinationOnPut(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	p := New(Config{Dial: dialerFor(host, port), MaxPerDestination: 1})

	a, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	b, err := dialerFor(host, port)(context.Background(), host, port)
	require.NoError(t, err)

	p.Put(host, port, a)
	p.Put(host, port, b)

	require.Len(t, p.idle[key{host, port}], 1)
}

func TestPoolRateLimitsPerHost(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	limiter := &ratelimit.RateLimit{UnitSecs: 3600, MaxCount: 1}
	limiter.Initialise()
	p := New(Config{Dial: dialerFor(host, port), RateLimit: limiter})

	_, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)

	_, err = p.Get(context.Background(), host, port)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestPoolCloseAll(t *testing.T) {
	host, port := startFakeSMTPServer(t)
	p := New(Config{Dial: dialerFor(host, port)})

	sess, err := p.Get(context.Background(), host, port)
	require.NoError(t, err)
	p.Put(host, port, sess)
	p.CloseAll()

	require.Empty(t, p.idle[key{host, port}])
}
