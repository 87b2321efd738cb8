package transport

import (
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCertificate(t *testing.T) {
	cert, err := GenerateSelfSignedCertificate("sim-1", []string{"127.0.0.1", "kinetic.local"}, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)

	assert.Equal(t, "sim-1", cert.Leaf.Subject.CommonName)
	assert.Equal(t, []string{"kinetic.local"}, cert.Leaf.DNSNames)
	require.Len(t, cert.Leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.Leaf.IPAddresses[0].String())

	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)
	_, err = cert.Leaf.Verify(x509.VerifyOptions{DNSName: "kinetic.local", Roots: pool})
	assert.NoError(t, err)
}

func TestNewServerTLSConfig(t *testing.T) {
	_, err := NewServerTLSConfig(nil)
	assert.Error(t, err)

	cert, err := GenerateSelfSignedCertificate("sim", nil, time.Hour)
	require.NoError(t, err)

	conf, err := NewServerTLSConfig(&TLSConfig{Certificate: cert})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), conf.MinVersion)
	assert.Equal(t, tls.NoClientCert, conf.ClientAuth)
	assert.Equal(t, []string{ALPNProtocol}, conf.NextProtos)

	conf, err = NewServerTLSConfig(&TLSConfig{Certificate: cert, ClientCAs: x509.NewCertPool()})
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, conf.ClientAuth)
}

func TestVerifyConnection(t *testing.T) {
	assert.NoError(t, VerifyConnection(tls.ConnectionState{Version: tls.VersionTLS13}))
	assert.NoError(t, VerifyConnection(tls.ConnectionState{Version: tls.VersionTLS13, NegotiatedProtocol: ALPNProtocol}))
	assert.Error(t, VerifyConnection(tls.ConnectionState{Version: tls.VersionTLS12}))
	assert.Error(t, VerifyConnection(tls.ConnectionState{Version: tls.VersionTLS13, NegotiatedProtocol: "h2"}))
}
