package authority

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

// PEM block types for the root key material.
const (
	sealedKeyPEMType = "V2X SEALED PRIVATE KEY"
	publicKeyPEMType = "PUBLIC KEY"
)

// Sealed private key layout: salt || nonce || AES-256-GCM ciphertext of the
// PKCS#8 DER. The key is derived from the passphrase with scrypt.
const (
	sealSaltLen  = 16
	sealNonceLen = 12
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
)

// ErrWrongPassphrase is returned when the sealed root key cannot be opened.
// GCM authentication cannot distinguish a wrong passphrase from a corrupted
// file, so both report as this error.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// GenerateRootKey creates a fresh root ECDSA key pair on the given curve.
func GenerateRootKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate root key: %w", err)
	}
	return key, nil
}

// SavePrivateKey seals the root private key under passphrase and writes it
// to path as a PEM file readable only by the owner.
func SavePrivateKey(path string, key *ecdsa.PrivateKey, passphrase string) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("encode root key: %w", err)
	}

	salt := make([]byte, sealSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, sealNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	sealed := append(append(salt, nonce...), gcm.Seal(nil, nonce, der, nil)...)
	return writePEM(path, sealedKeyPEMType, sealed)
}

// SavePublicKey writes the root public key to path as an unencrypted
// PKIX PEM file.
func SavePublicKey(path string, pub *ecdsa.PublicKey) error {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("encode root public key: %w", err)
	}
	return writePEM(path, publicKeyPEMType, der)
}

// LoadPrivateKey reads and unseals the root private key. Any failure here
// is fatal for the authority: without the root key it cannot exist.
func LoadPrivateKey(path, passphrase string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != sealedKeyPEMType {
		return nil, fmt.Errorf("root private key %s: not a sealed key PEM", path)
	}
	if len(block.Bytes) < sealSaltLen+sealNonceLen+1 {
		return nil, fmt.Errorf("root private key %s: sealed block too short", path)
	}

	salt := block.Bytes[:sealSaltLen]
	nonce := block.Bytes[sealSaltLen : sealSaltLen+sealNonceLen]
	ciphertext := block.Bytes[sealSaltLen+sealNonceLen:]

	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}
	der, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("unseal root private key %s: %w", path, ErrWrongPassphrase)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse root private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("root private key %s: not an ECDSA key", path)
	}
	return key, nil
}

// LoadPublicKey reads the root public key PEM from path.
func LoadPublicKey(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root public key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, fmt.Errorf("root public key %s: not a public key PEM", path)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse root public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("root public key %s: not an ECDSA key", path)
	}
	return pub, nil
}

func sealCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func writePEM(path, blockType string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: data})
}
