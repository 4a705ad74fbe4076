// Package dkim signs outgoing messages per RFC 6376: header and body
// canonicalization, body hashing, and production of a DKIM-Signature
// header using RSA-SHA256 or Ed25519-SHA256 (RFC 8463).
package dkim

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Algorithm is the DKIM signing algorithm.
type Algorithm int

const (
	RSA Algorithm = iota
	Ed25519Alg
)

func (a Algorithm) tag() string {
	if a == Ed25519Alg {
		return "ed25519"
	}
	return "rsa"
}

// Canon is a canonicalization mode, applied independently to headers and
// body.
type Canon int

const (
	Simple Canon = iota
	Relaxed
)

func (c Canon) String() string {
	if c == Relaxed {
		return "relaxed"
	}
	return "simple"
}

// Config holds everything the signer needs for one signing call. The
// invariant that Algorithm and PrivateKey's variant agree is checked by
// Sign, not at construction, since Config is a plain value type assembled
// however the caller likes.
type Config struct {
	Selector    string
	Domain      string
	HeaderNames []string // e.g. []string{"From", "To", "Subject", "Date"}
	HeaderCanon Canon
	BodyCanon   Canon
	Algorithm   Algorithm
	PrivateKey  crypto.Signer // *rsa.PrivateKey or ed25519.PrivateKey
}

func (cfg Config) validate() error {
	if cfg.Selector == "" || cfg.Domain == "" {
		return &Error{Kind: BadKey, Err: errors.New("selector and domain are required")}
	}
	if len(cfg.HeaderNames) == 0 {
		return &Error{Kind: BadKey, Err: errors.New("at least one header name is required")}
	}
	if cfg.PrivateKey == nil {
		return &Error{Kind: BadKey, Err: errors.New("private key is required")}
	}
	return cfg.checkKeyMatchesAlgorithm()
}

func (cfg Config) checkKeyMatchesAlgorithm() error {
	pub := cfg.PrivateKey.Public()
	switch cfg.Algorithm {
	case RSA:
		if _, ok := pub.(*rsa.PublicKey); !ok {
			return &Error{Kind: AlgorithmMismatch, Err: fmt.Errorf("algorithm RSA configured but key is %T", pub)}
		}
	case Ed25519Alg:
		if _, ok := pub.(ed25519.PublicKey); !ok {
			return &Error{Kind: AlgorithmMismatch, Err: fmt.Errorf("algorithm Ed25519 configured but key is %T", pub)}
		}
	default:
		return &Error{Kind: AlgorithmMismatch, Err: fmt.Errorf("unknown algorithm %d", cfg.Algorithm)}
	}
	return nil
}

// LoadPrivateKey parses a PEM-encoded RSA (PKCS#1 or PKCS#8) or Ed25519
// (PKCS#8) private key, returning the key alongside the Algorithm it
// implies. A parse failure is reported as a BadKey error.
func LoadPrivateKey(pemBytes []byte) (crypto.Signer, Algorithm, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, 0, &Error{Kind: BadKey, Err: errors.New("dkim: no PEM block found")}
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, RSA, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, 0, &Error{Kind: BadKey, Err: fmt.Errorf("dkim: unable to parse private key: %w", err)}
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, RSA, nil
	case ed25519.PrivateKey:
		return k, Ed25519Alg, nil
	default:
		return nil, 0, &Error{Kind: BadKey, Err: fmt.Errorf("dkim: unsupported private key type %T", key)}
	}
}
