package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// TLS constants for the device protocol.
const (
	// ALPNProtocol is offered by the device. Clients that do not negotiate
	// ALPN are still accepted.
	ALPNProtocol = "kinetic/1"

	// DefaultPort is the default plain-text port.
	DefaultPort = 8123

	// DefaultTLSPort is the default TLS port.
	DefaultTLSPort = 8443
)

// ErrCertificateRequired indicates a TLS config without a certificate.
var ErrCertificateRequired = errors.New("certificate is required")

// TLSConfig holds configuration for device TLS connections.
type TLSConfig struct {
	// Certificate is the TLS certificate for this endpoint.
	Certificate tls.Certificate

	// RootCAs is the pool of trusted CA certificates (clients).
	RootCAs *x509.CertPool

	// ClientCAs verifies client certificates when presented (servers).
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	ServerName string

	// InsecureSkipVerify disables server certificate verification.
	// Only for testing against self-signed simulators.
	InsecureSkipVerify bool
}

// NewServerTLSConfig creates a TLS configuration for the device listener.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, fmt.Errorf("server %w", ErrCertificateRequired)
	}

	tlsConfig := &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cfg.Certificate},
		NextProtos:   []string{ALPNProtocol},

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,
	}

	// Client identity is carried by the HMAC auth block, not by certificates.
	tlsConfig.ClientAuth = tls.NoClientCert
	if cfg.ClientCAs != nil {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		tlsConfig.ClientCAs = cfg.ClientCAs
	}

	return tlsConfig, nil
}

// NewClientTLSConfig creates a TLS configuration for a client connecting to
// the device TLS port. A client certificate is optional.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		RootCAs:    cfg.RootCAs,
		ServerName: cfg.ServerName,
		NextProtos: []string{ALPNProtocol},

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if len(cfg.Certificate.Certificate) > 0 {
		tlsConfig.Certificates = []tls.Certificate{cfg.Certificate}
	}

	return tlsConfig, nil
}

// VerifyTLS13 checks that a TLS connection is using TLS 1.3.
func VerifyTLS13(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	return nil
}

// VerifyALPN checks the negotiated ALPN protocol, if any was negotiated.
func VerifyALPN(state tls.ConnectionState) error {
	if state.NegotiatedProtocol != "" && state.NegotiatedProtocol != ALPNProtocol {
		return fmt.Errorf("ALPN protocol %q is not %q", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}

// VerifyConnection performs standard connection verification.
func VerifyConnection(state tls.ConnectionState) error {
	if err := VerifyTLS13(state); err != nil {
		return err
	}
	return VerifyALPN(state)
}

// GenerateSelfSignedCertificate creates an ECDSA P-256 certificate for the
// simulator's TLS listener. hosts may contain DNS names and IP addresses.
func GenerateSelfSignedCertificate(commonName string, hosts []string, validity time.Duration) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"Kinetic Simulator"}},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// LoadCertificate loads a PEM certificate and key pair from disk.
func LoadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}
