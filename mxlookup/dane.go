package mxlookup

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"

	"github.com/miekg/dns"
)

// VerifyPeerCertificate builds a tls.Config.VerifyPeerCertificate hook that
// pins the handshake to tlsa, per RFC 7672 §3: selector 0 matches the full
// certificate, selector 1 matches the public key; matching type 1 is SHA-256,
// type 2 is SHA-512. Usage 0/1 (PKIX-*) additionally requires the default
// chain validation to have already succeeded, which the caller arranges by
// leaving InsecureSkipVerify false; usage 2/3 (DANE-*) bypasses it entirely,
// so this hook is the only check performed.
func VerifyPeerCertificate(tlsa *dns.TLSA) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("mxlookup: no certificate presented during TLS handshake")
		}
		var candidate []byte
		switch tlsa.Selector {
		case 0:
			candidate = rawCerts[0]
		case 1:
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("mxlookup: parsing presented certificate: %w", err)
			}
			candidate = cert.RawSubjectPublicKeyInfo
		default:
			return fmt.Errorf("mxlookup: unsupported TLSA selector %d", tlsa.Selector)
		}

		digest, err := matchingData(tlsa.MatchingType, candidate)
		if err != nil {
			return err
		}
		if digest != tlsa.Certificate {
			return fmt.Errorf("mxlookup: presented certificate does not match published TLSA record")
		}
		return nil
	}
}

func matchingData(matchingType uint8, data []byte) (string, error) {
	switch matchingType {
	case 0:
		return fmt.Sprintf("%x", data), nil
	case 1:
		sum := sha256.Sum256(data)
		return fmt.Sprintf("%x", sum[:]), nil
	case 2:
		sum := sha512.Sum512(data)
		return fmt.Sprintf("%x", sum[:]), nil
	default:
		return "", fmt.Errorf("mxlookup: unsupported TLSA matching type %d", matchingType)
	}
}
