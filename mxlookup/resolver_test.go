package mxlookup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// startTestServer runs a dns.Server over UDP on an ephemeral loopback port
// using handler to answer queries, returning its address and a shutdown func.
func startTestServer(t *testing.T, handler dns.HandlerFunc) (string, func()) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", handler)
	srv := &dns.Server{PacketConn: pc, Handler: mux}

	ready := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(ready) }
	go func() { _ = srv.ActivateAndServe() }()
	<-ready

	return pc.LocalAddr().String(), func() { _ = srv.Shutdown() }
}

func TestLookupMXSortsByPreference(t *testing.T) {
	addr, stop := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = []dns.RR{
			&dns.MX{Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeMX, Class: dns.ClassINET}, Preference: 20, Mx: "backup.example.com."},
			&dns.MX{Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeMX, Class: dns.ClassINET}, Preference: 10, Mx: "primary.example.com."},
		}
		require.NoError(t, w.WriteMsg(m))
	})
	defer stop()

	r := NewResolver(addr, time.Second)
	targets, err := r.LookupMX(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "primary.example.com", targets[0].Host)
	require.Equal(t, uint16(10), targets[0].Preference)
	require.Equal(t, "backup.example.com", targets[1].Host)
}

func TestLookupMXFallsBackToDomainWhenNoRecords(t *testing.T) {
	addr, stop := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		require.NoError(t, w.WriteMsg(m))
	})
	defer stop()

	r := NewResolver(addr, time.Second)
	targets, err := r.LookupMX(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, []Target{{Host: "example.com", Preference: 0}}, targets)
}

func TestLookupMXErrorsOnServFail(t *testing.T) {
	addr, stop := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeServerFailure)
		require.NoError(t, w.WriteMsg(m))
	})
	defer stop()

	r := NewResolver(addr, time.Second)
	_, err := r.LookupMX(context.Background(), "example.com")
	require.Error(t, err)
}

func TestLookupTLSAReturnsRecord(t *testing.T) {
	addr, stop := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = []dns.RR{
			&dns.TLSA{
				Hdr:          dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeTLSA, Class: dns.ClassINET},
				Usage:        3,
				Selector:     1,
				MatchingType: 1,
				Certificate:  "abcd",
			},
		}
		require.NoError(t, w.WriteMsg(m))
	})
	defer stop()

	r := NewResolver(addr, time.Second)
	tlsa, err := r.LookupTLSA(context.Background(), "mail.example.com", 25)
	require.NoError(t, err)
	require.NotNil(t, tlsa)
	require.Equal(t, "abcd", tlsa.Certificate)
}

func TestLookupTLSAReturnsNilWhenAbsent(t *testing.T) {
	addr, stop := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		require.NoError(t, w.WriteMsg(m))
	})
	defer stop()

	r := NewResolver(addr, time.Second)
	tlsa, err := r.LookupTLSA(context.Background(), "mail.example.com", 25)
	require.NoError(t, err)
	require.Nil(t, tlsa)
}

func TestVerifyPeerCertificateMatchesFullCertificateSHA256(t *testing.T) {
	cert := []byte("fake-der-certificate-bytes")
	sum := sha256Hex(cert)
	tlsa := &dns.TLSA{Usage: 3, Selector: 0, MatchingType: 1, Certificate: sum}

	hook := VerifyPeerCertificate(tlsa)
	require.NoError(t, hook([][]byte{cert}, nil))

	tlsa.Certificate = "0000"
	require.Error(t, hook([][]byte{cert}, nil))
}
