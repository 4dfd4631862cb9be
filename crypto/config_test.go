package crypto_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto/tls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crypto"
)

// TestNewInternalTLSConfig executes a black-box unit
// test on the PKI generation and the TLS configs built
// from it.
func TestNewInternalTLSConfig(t *testing.T) {

	dir := t.TempDir()

	err := crypto.GeneratePKI(dir, map[string]string{
		"alpha": "127.0.0.1:7001",
		"beta":  "replica-beta.internal:7001",
	}, time.Hour)
	require.NoError(t, err)

	root := filepath.Join(dir, crypto.RootCertFile)

	_, err = crypto.NewInternalTLSConfig(filepath.Join(dir, "missing-cert.pem"), filepath.Join(dir, crypto.KeyFile("alpha")), root)
	assert.Error(t, err)

	_, err = crypto.NewInternalTLSConfig(filepath.Join(dir, crypto.CertFile("alpha")), filepath.Join(dir, crypto.KeyFile("alpha")), filepath.Join(dir, "missing-root.pem"))
	assert.Error(t, err)

	// A key file is no certificate.
	_, err = crypto.NewInternalTLSConfig(filepath.Join(dir, crypto.CertFile("alpha")), filepath.Join(dir, crypto.KeyFile("alpha")), filepath.Join(dir, crypto.RootKeyFile))
	assert.Error(t, err)

	alpha, err := crypto.NewInternalTLSConfig(filepath.Join(dir, crypto.CertFile("alpha")), filepath.Join(dir, crypto.KeyFile("alpha")), root)
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, alpha.ClientAuth)
	require.Len(t, alpha.Certificates, 1)

	beta, err := crypto.NewInternalTLSConfig(filepath.Join(dir, crypto.CertFile("beta")), filepath.Join(dir, crypto.KeyFile("beta")), root)
	require.NoError(t, err)

	leaf := beta.Certificates[0].Leaf
	require.NotNil(t, leaf)
	assert.Contains(t, leaf.DNSNames, "replica-beta.internal")
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))

	info, err := os.Stat(filepath.Join(dir, crypto.KeyFile("beta")))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// TestMutualTLS performs a handshake between
// two replicas of one PKI.
func TestMutualTLS(t *testing.T) {

	dir := t.TempDir()
	require.NoError(t, crypto.GeneratePKI(dir, map[string]string{"a": "", "b": ""}, time.Hour))

	load := func(name string) *tls.Config {

		conf, err := crypto.NewInternalTLSConfig(filepath.Join(dir, crypto.CertFile(name)), filepath.Join(dir, crypto.KeyFile(name)), filepath.Join(dir, crypto.RootCertFile))
		require.NoError(t, err)

		return conf
	}

	lis, err := tls.Listen("tcp", "127.0.0.1:0", load("a"))
	require.NoError(t, err)
	defer lis.Close()

	accepted := make(chan error, 1)
	go func() {

		conn, err := lis.Accept()
		if err != nil {
			accepted <- err
			return
		}
		defer conn.Close()

		accepted <- conn.(*tls.Conn).Handshake()
	}()

	conn, err := tls.Dial("tcp", lis.Addr().String(), load("b"))
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, <-accepted)
	assert.Equal(t, "a", conn.ConnectionState().PeerCertificates[0].Subject.CommonName)
}
