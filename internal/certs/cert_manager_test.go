package certs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGeneratesOnce(t *testing.T) {
	cm := NewCertManager(t.TempDir(), []string{"localhost", "192.168.1.20"})

	created, err := cm.Ensure()
	require.NoError(t, err)
	assert.True(t, created)

	cert, err := cm.LoadCertificate()
	require.NoError(t, err)
	assert.Contains(t, cert.DNSNames, "localhost")
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "192.168.1.20", cert.IPAddresses[0].String())
	assert.False(t, cm.IsExpired(cert))

	created, err = cm.Ensure()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureRenewsExpired(t *testing.T) {
	dir := t.TempDir()
	cm := NewCertManager(dir, []string{"localhost"})
	cm.now = func() time.Time { return time.Now().Add(-2 * selfSignedValidity) }
	require.NoError(t, cm.RenewCertificate())

	cm.now = time.Now
	old, err := cm.LoadCertificate()
	require.NoError(t, err)
	assert.True(t, cm.IsExpired(old))

	created, err := cm.Ensure()
	require.NoError(t, err)
	assert.True(t, created)
	fresh, err := cm.LoadCertificate()
	require.NoError(t, err)
	assert.False(t, cm.IsExpired(fresh))
}

func TestTLSConfig(t *testing.T) {
	cfg, err := NewCertManager(t.TempDir(), []string{"localhost"}).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
}

func TestACMEHostPolicy(t *testing.T) {
	m := NewCertManager(t.TempDir(), nil).ACME([]string{"booth.example"})
	assert.NoError(t, m.HostPolicy(context.Background(), "booth.example"))
	assert.Error(t, m.HostPolicy(context.Background(), "evil.example"))
}
