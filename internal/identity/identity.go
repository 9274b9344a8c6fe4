// Package identity manages this node's TLS keypair and certificate, used
// to serve the admin surface over HTTPS (spec §2 component C12); ring
// peers are matched by configured node ID, not by certificate. Trimmed from the teacher's
// internal/peer/crypto.go: the SPAKE2+ pairing and trusted-peer-store
// machinery doesn't apply to a fixed, statically-configured ring, so only
// keypair generation/persistence and the derived TLS config survive.
package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Identity holds this node's ECDSA keypair and self-signed certificate.
type Identity struct {
	mu          sync.RWMutex
	privateKey  *ecdsa.PrivateKey
	certificate *x509.Certificate

	certPath string
	keyPath  string
	logger   *zap.Logger
}

// Load reads the keypair from dataDir/identity/{node.crt,node.key},
// generating and persisting a fresh one if absent or expired.
func Load(dataDir, nodeID string, logger *zap.Logger) (*Identity, error) {
	dir := filepath.Join(dataDir, "identity")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("identity: creating %s: %w", dir, err)
	}

	id := &Identity{
		certPath: filepath.Join(dir, "node.crt"),
		keyPath:  filepath.Join(dir, "node.key"),
		logger:   logger,
	}

	if err := id.loadOrGenerate(nodeID); err != nil {
		return nil, err
	}

	logger.Info("identity loaded", zap.String("node_id", nodeID), zap.String("fingerprint", id.Fingerprint()))
	return id, nil
}

func (id *Identity) loadOrGenerate(nodeID string) error {
	if _, err := os.Stat(id.certPath); os.IsNotExist(err) {
		return id.generateAndSave(nodeID)
	}

	certPEM, err := os.ReadFile(id.certPath)
	if err != nil {
		return fmt.Errorf("identity: reading certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(id.keyPath)
	if err != nil {
		return fmt.Errorf("identity: reading private key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return fmt.Errorf("identity: malformed certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("identity: parsing certificate: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return fmt.Errorf("identity: malformed private key PEM")
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("identity: parsing private key: %w", err)
	}

	if time.Now().After(cert.NotAfter) {
		id.logger.Warn("node certificate expired, regenerating")
		return id.generateAndSave(nodeID)
	}

	id.certificate = cert
	id.privateKey = key
	return nil
}

func (id *Identity) generateAndSave(nodeID string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("identity: generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("identity: generating serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"bucket-migrate"},
			CommonName:   nodeID,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("identity: creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("identity: parsing created certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("identity: marshaling private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	certTmp, keyTmp := id.certPath+".tmp", id.keyPath+".tmp"
	if err := os.WriteFile(certTmp, certPEM, 0600); err != nil {
		return fmt.Errorf("identity: writing certificate: %w", err)
	}
	if err := os.WriteFile(keyTmp, keyPEM, 0600); err != nil {
		os.Remove(certTmp)
		return fmt.Errorf("identity: writing private key: %w", err)
	}
	if err := os.Rename(certTmp, id.certPath); err != nil {
		os.Remove(certTmp)
		os.Remove(keyTmp)
		return fmt.Errorf("identity: renaming certificate: %w", err)
	}
	if err := os.Rename(keyTmp, id.keyPath); err != nil {
		os.Remove(keyTmp)
		return fmt.Errorf("identity: renaming private key: %w", err)
	}

	id.certificate = cert
	id.privateKey = key
	return nil
}

// Fingerprint returns the SHA-256 fingerprint of the node's certificate,
// for logging.
func (id *Identity) Fingerprint() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.certificate == nil {
		return ""
	}
	sum := sha256.Sum256(id.certificate.Raw)
	return hex.EncodeToString(sum[:])
}

// TLSConfig returns a server-side tls.Config carrying this node's
// certificate, used by the admin HTTP surface when tls_enabled is set.
func (id *Identity) TLSConfig() (*tls.Config, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.certificate == nil || id.privateKey == nil {
		return nil, fmt.Errorf("identity: keypair not initialized")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{id.certificate.Raw},
			PrivateKey:  id.privateKey,
		}},
		MinVersion: tls.VersionTLS13,
	}, nil
}
