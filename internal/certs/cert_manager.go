// Package certs provides TLS material for the booth. Browsers only expose
// the camera on secure origins, so kiosks on a LAN need HTTPS too.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	certFile = "cert.pem"
	keyFile  = "key.pem"

	selfSignedValidity = 365 * 24 * time.Hour
)

// CertManager manages the certificate files in a directory.
type CertManager struct {
	certDir string
	hosts   []string
	now     func() time.Time
}

// NewCertManager creates a new CertManager for the given directory. hosts
// are used as SANs when a self-signed certificate has to be generated.
func NewCertManager(certDir string, hosts []string) *CertManager {
	return &CertManager{certDir: certDir, hosts: hosts, now: time.Now}
}

func (cm *CertManager) CertPath() string { return filepath.Join(cm.certDir, certFile) }
func (cm *CertManager) KeyPath() string  { return filepath.Join(cm.certDir, keyFile) }

// LoadCertificate parses the leaf certificate on disk.
func (cm *CertManager) LoadCertificate() (*x509.Certificate, error) {
	data, err := os.ReadFile(cm.CertPath())
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse certificate PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

// IsExpired checks if a certificate is expired.
func (cm *CertManager) IsExpired(cert *x509.Certificate) bool {
	return cert.NotAfter.Before(cm.now())
}

// Ensure makes sure a usable key pair exists, generating a self-signed one
// when the certificate is missing, unreadable or expired. It reports whether
// a new pair was written.
func (cm *CertManager) Ensure() (bool, error) {
	cert, err := cm.LoadCertificate()
	if err == nil && !cm.IsExpired(cert) {
		if _, err := os.Stat(cm.KeyPath()); err == nil {
			return false, nil
		}
	}
	if err := cm.RenewCertificate(); err != nil {
		return false, err
	}
	return true, nil
}

// RenewCertificate replaces the key pair with a fresh self-signed one.
func (cm *CertManager) RenewCertificate() error {
	if err := os.MkdirAll(cm.certDir, 0o700); err != nil {
		return err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	now := cm.now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"photobooth"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range cm.hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}

	if err := os.WriteFile(cm.KeyPath(), pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		return err
	}
	return os.WriteFile(cm.CertPath(), pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644)
}

// TLSConfig ensures the key pair and returns a server config using it.
func (cm *CertManager) TLSConfig() (*tls.Config, error) {
	if _, err := cm.Ensure(); err != nil {
		return nil, err
	}
	pair, err := tls.LoadX509KeyPair(cm.CertPath(), cm.KeyPath())
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
	}, nil
}

// ACME returns an autocert manager for public deployments. Issued
// certificates are cached in the cert directory.
func (cm *CertManager) ACME(domains []string) *autocert.Manager {
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cm.certDir),
	}
}
