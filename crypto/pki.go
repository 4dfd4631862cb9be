package crypto

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
)

// File names of the root certificate and key.
const (
	RootCertFile = "root-cert.pem"
	RootKeyFile  = "root-key.pem"
)

// CertFile and KeyFile name the files holding the
// certificate and key of a replica.
func CertFile(name string) string {
	return fmt.Sprintf("%s-cert.pem", name)
}

func KeyFile(name string) string {
	return fmt.Sprintf("%s-key.pem", name)
}

// certTemplate returns a certificate template that
// has all default values for our certificates set.
func certTemplate(notBefore time.Time, notAfter time.Time) (*x509.Certificate, error) {

	// For serial number generation we need a biggest
	// number to mark the range of the serial number.
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("could not generate random serial number: %v", err)
	}

	return &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"lwwgraph internal PKI"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
	}, nil
}

// writePEM stores one PEM block at path.
func writePEM(path string, blockType string, der []byte, perm os.FileMode) error {

	file, err := os.OpenFile(path, (os.O_WRONLY | os.O_CREATE | os.O_TRUNC), perm)
	if err != nil {
		return fmt.Errorf("failed to open '%s' for writing: %v", path, err)
	}
	defer file.Close()

	err = pem.Encode(file, &pem.Block{Type: blockType, Bytes: der})
	if err != nil {
		return fmt.Errorf("failed to write PEM block to '%s': %v", path, err)
	}

	return file.Sync()
}

func writeKey(path string, key *ecdsa.PrivateKey) error {

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key for '%s': %v", path, err)
	}

	return writePEM(path, "EC PRIVATE KEY", der, 0600)
}

// hostOf extracts the host of addr, which may
// or may not carry a port.
func hostOf(addr string) string {

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}

// createReplicaCert creates a key pair for a replica and
// a certificate for it signed by the root certificate. The
// certificate is valid for the host of addr and localhost.
func createReplicaCert(dir string, name string, addr string, notBefore time.Time, notAfter time.Time, rootCert *x509.Certificate, rootKey *ecdsa.PrivateKey) error {

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key for %s: %v", name, err)
	}

	template, err := certTemplate(notBefore, notAfter)
	if err != nil {
		return err
	}

	template.Subject.CommonName = name
	template.KeyUsage = x509.KeyUsageDigitalSignature
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	template.DNSNames = []string{"localhost"}
	template.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}

	if host := hostOf(addr); host != "" {

		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "localhost" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, rootCert, &key.PublicKey, rootKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate for %s: %v", name, err)
	}

	err = writePEM(filepath.Join(dir, CertFile(name)), "CERTIFICATE", certDER, 0644)
	if err != nil {
		return err
	}

	return writeKey(filepath.Join(dir, KeyFile(name)), key)
}

// GeneratePKI creates a root certificate in dir and signs
// one certificate for each replica in replicas, a map from
// replica name to its sync address. All certificates are
// valid from now on for the duration validFor.
func GeneratePKI(dir string, replicas map[string]string, validFor time.Duration) error {

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("failed to create PKI directory '%s': %v", dir, err)
	}

	notBefore := time.Now().Add(-time.Minute)
	notAfter := notBefore.Add(validFor)

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate root key: %v", err)
	}

	rootTemplate, err := certTemplate(notBefore, notAfter)
	if err != nil {
		return err
	}

	rootTemplate.Subject.CommonName = "lwwgraph root"
	rootTemplate.IsCA = true
	rootTemplate.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign

	rootCertDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	if err != nil {
		return fmt.Errorf("failed to create root certificate: %v", err)
	}

	// Parse root certificate again so that we can sign with it.
	rootCert, err := x509.ParseCertificate(rootCertDER)
	if err != nil {
		return fmt.Errorf("failed to parse root certificate: %v", err)
	}

	err = writePEM(filepath.Join(dir, RootCertFile), "CERTIFICATE", rootCertDER, 0644)
	if err != nil {
		return err
	}

	err = writeKey(filepath.Join(dir, RootKeyFile), rootKey)
	if err != nil {
		return err
	}

	for name, addr := range replicas {

		err = createReplicaCert(dir, name, addr, notBefore, notAfter, rootCert, rootKey)
		if err != nil {
			return err
		}
	}

	return nil
}
