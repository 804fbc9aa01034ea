package api

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
)

// PinSet maps a domain to the base64-encoded SHA-256 hashes of the
// public keys (SPKI) it is allowed to present. A chain matches when any
// certificate in it hashes to a pinned value for the requested domain.
type PinSet map[string][]string

// SPKIFingerprint computes the base64 SHA-256 hash of a certificate's
// SubjectPublicKeyInfo, the value that goes into a PinSet.
func SPKIFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Validate checks the presented chain against the pins for the domain.
// A domain with no configured pins fails closed: no domain is exempt.
func (p PinSet) Validate(domain string, chain []*x509.Certificate) bool {
	pins := p[domain]
	if len(pins) == 0 {
		return false
	}
	for _, cert := range chain {
		fp := SPKIFingerprint(cert)
		for _, pin := range pins {
			if fp == pin {
				return true
			}
		}
	}
	return false
}

// PinMismatchError aborts the TLS handshake when the server's identity
// does not match the pinned keys. The connection never falls back to
// default trust alone.
type PinMismatchError struct {
	Domain string
}

func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("tls: no pinned public key matched for %q", e.Domain)
}

// NewPinnedTransport returns an http.Transport whose TLS dials verify
// the presented chain against the pin set, in addition to standard
// chain verification. baseTLS, when non-nil, supplies roots and other
// TLS settings. With enforce false the transport performs standard
// verification only; meant for non-production builds talking to local
// or staging endpoints.
func NewPinnedTransport(pins PinSet, baseTLS *tls.Config, enforce bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if baseTLS != nil {
		transport.TLSClientConfig = baseTLS.Clone()
	}
	if !enforce {
		return transport
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &tls.Config{}
		if baseTLS != nil {
			cfg = baseTLS.Clone()
		}
		cfg.ServerName = host
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if pins.Validate(host, cs.PeerCertificates) {
				return nil
			}
			return &PinMismatchError{Domain: host}
		}

		dialer := &tls.Dialer{Config: cfg}
		return dialer.DialContext(ctx, network, addr)
	}
	return transport
}
