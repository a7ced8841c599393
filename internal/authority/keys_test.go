package authority_test

import (
	"crypto/elliptic"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
)

func TestRootKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ca_pvt_key.pem")
	pubPath := filepath.Join(dir, "ca_pub_key.pem")

	key, err := authority.GenerateRootKey(elliptic.P256())
	require.NoError(t, err)

	require.NoError(t, authority.SavePrivateKey(privPath, key, "v2x_ca_pvt_key"))
	require.NoError(t, authority.SavePublicKey(pubPath, &key.PublicKey))

	loaded, err := authority.LoadPrivateKey(privPath, "v2x_ca_pvt_key")
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))

	pub, err := authority.LoadPublicKey(pubPath)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))
}

func TestLoadPrivateKeyWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ca_pvt_key.pem")

	key, err := authority.GenerateRootKey(elliptic.P256())
	require.NoError(t, err)
	require.NoError(t, authority.SavePrivateKey(privPath, key, "correct"))

	_, err = authority.LoadPrivateKey(privPath, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, authority.ErrWrongPassphrase))
}

func TestLoadPrivateKeyMissingFile(t *testing.T) {
	_, err := authority.LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"), "pass")
	assert.Error(t, err)
}

func TestLoadPrivateKeyRejectsWrongBlockType(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "ca_pub_key.pem")

	key, err := authority.GenerateRootKey(elliptic.P256())
	require.NoError(t, err)
	require.NoError(t, authority.SavePublicKey(pubPath, &key.PublicKey))

	// A public key file is not a sealed private key.
	_, err = authority.LoadPrivateKey(pubPath, "pass")
	assert.Error(t, err)
}
