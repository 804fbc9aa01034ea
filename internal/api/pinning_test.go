package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "api.pairdesk.com"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestPinSet_Validate(t *testing.T) {
	cert := selfSignedCert(t)
	other := selfSignedCert(t)
	pin := SPKIFingerprint(cert)

	pins := PinSet{"api.pairdesk.com": {pin}}

	assert.True(t, pins.Validate("api.pairdesk.com", []*x509.Certificate{cert}))
	assert.False(t, pins.Validate("api.pairdesk.com", []*x509.Certificate{other}))

	// A chain matches when any certificate in it is pinned.
	assert.True(t, pins.Validate("api.pairdesk.com", []*x509.Certificate{other, cert}))

	// Unknown domains fail closed.
	assert.False(t, pins.Validate("evil.example.com", []*x509.Certificate{cert}))

	// Empty chains never match.
	assert.False(t, pins.Validate("api.pairdesk.com", nil))
}

func TestNewPinnedTransport_EnforcesPins(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	serverCert := server.Certificate()
	pool := x509.NewCertPool()
	pool.AddCert(serverCert)

	baseTLS := &tls.Config{RootCAs: pool}

	// Matching pin: connection succeeds.
	good := NewPinnedTransport(PinSet{"127.0.0.1": {SPKIFingerprint(serverCert)}}, baseTLS, true)
	resp, err := (&http.Client{Transport: good}).Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// Wrong pin: handshake aborts.
	bad := NewPinnedTransport(PinSet{"127.0.0.1": {SPKIFingerprint(selfSignedCert(t))}}, baseTLS, true)
	_, err = (&http.Client{Transport: bad}).Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pinned public key")
}

func TestNewPinnedTransport_DisabledSkipsPinCheck(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())

	// No pins configured at all, enforcement off: standard verification only.
	transport := NewPinnedTransport(nil, &tls.Config{RootCAs: pool}, false)
	resp, err := (&http.Client{Transport: transport}).Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
}
