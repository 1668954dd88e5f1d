package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed certificate that doubles as its own CA.
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "gradecast-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestConfig_Disabled(t *testing.T) {
	var c Config
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if cfg, err := c.Server(); cfg != nil || err != nil {
		t.Errorf("Server() = %v, %v, want nil, nil", cfg, err)
	}
	if cfg, err := c.Client(); cfg != nil || err != nil {
		t.Errorf("Client() = %v, %v, want nil, nil", cfg, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "complete", cfg: Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: cert}},
		{name: "missing ca", cfg: Config{Enabled: true, CertFile: cert, KeyFile: key}, wantErr: true},
		{name: "nonexistent file", cfg: Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: filepath.Join(dir, "nope.pem")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerAndClientConfig(t *testing.T) {
	cert, key := writeSelfSigned(t, t.TempDir())
	c := Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: cert}

	srv, err := c.Server()
	if err != nil {
		t.Fatalf("Server() error = %v", err)
	}
	if srv.ClientAuth != cryptotls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", srv.ClientAuth)
	}
	if srv.MinVersion != cryptotls.VersionTLS13 || len(srv.Certificates) != 1 {
		t.Errorf("server config = MinVersion %x, %d certificates", srv.MinVersion, len(srv.Certificates))
	}

	cli, err := c.Client()
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	if cli.RootCAs == nil || len(cli.Certificates) != 1 {
		t.Error("client config should carry a root pool and one certificate")
	}
}

func TestNewClientTLSConfig_BadCA(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)
	bad := filepath.Join(dir, "bad-ca.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewClientTLSConfig(cert, key, bad); err == nil {
		t.Error("NewClientTLSConfig() with garbage CA: error = nil")
	}
	if _, err := NewServerTLSConfig("", key, cert); err == nil {
		t.Error("NewServerTLSConfig() with empty cert path: error = nil")
	}
}
