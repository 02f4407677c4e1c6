// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/models"
)

func testEncryptor(t *testing.T) *config.CredentialEncryptor {
	t.Helper()
	enc, err := config.NewCredentialEncryptor("test-credential-key-material")
	require.NoError(t, err)
	return enc
}

func TestBlobRoundTrip(t *testing.T) {
	enc := testEncryptor(t)

	blob, err := EncryptBlob(enc, map[string]string{
		KeyClientID:     "ci_live_abc",
		KeyClientSecret: "cs_live_xyz",
	})
	require.NoError(t, err)
	// Ciphertext blob must not contain plaintext secrets.
	assert.NotContains(t, blob, "ci_live_abc")
	assert.NotContains(t, blob, "cs_live_xyz")

	secrets, err := DecryptBlob(enc, blob)
	require.NoError(t, err)
	assert.Equal(t, "ci_live_abc", secrets[KeyClientID])
	assert.Equal(t, "cs_live_xyz", secrets[KeyClientSecret])
}

func TestDecryptBlobErrors(t *testing.T) {
	enc := testEncryptor(t)

	_, err := DecryptBlob(enc, "")
	assert.ErrorIs(t, err, ErrEmptyBlob)

	_, err = DecryptBlob(enc, "{not json")
	assert.Error(t, err)

	_, err = DecryptBlob(enc, "{}")
	assert.ErrorIs(t, err, ErrEmptyBlob)
}

func TestStoreSourceResolve(t *testing.T) {
	enc := testEncryptor(t)
	blob, err := EncryptBlob(enc, map[string]string{
		KeyClientID:     "ci_org_1",
		KeyClientSecret: "cs_org_1",
	})
	require.NoError(t, err)

	src := NewStoreSource(enc)
	org := &models.Organization{ID: 1, CredentialsEncrypted: blob}

	creds, err := src.Resolve(org)
	require.NoError(t, err)
	assert.Equal(t, "ci_org_1", creds.ClientID)
	assert.Equal(t, "cs_org_1", creds.ClientSecret)
}

func TestStoreSourceMissingRequiredSecret(t *testing.T) {
	enc := testEncryptor(t)
	blob, err := EncryptBlob(enc, map[string]string{KeyClientID: "ci_only"})
	require.NoError(t, err)

	src := NewStoreSource(enc)
	_, err = src.Resolve(&models.Organization{CredentialsEncrypted: blob})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestStoreSourceNoBlob(t *testing.T) {
	src := NewStoreSource(testEncryptor(t))
	_, err := src.Resolve(&models.Organization{})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestEnvSourceResolve(t *testing.T) {
	src := NewEnvSource(&config.PlatformConfig{ClientID: "env_ci", ClientSecret: "env_cs"})
	creds, err := src.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "env_ci", creds.ClientID)

	empty := NewEnvSource(&config.PlatformConfig{})
	_, err = empty.Resolve(nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestChainPrefersStore(t *testing.T) {
	enc := testEncryptor(t)
	blob, err := EncryptBlob(enc, map[string]string{
		KeyClientID:     "store_ci",
		KeyClientSecret: "store_cs",
	})
	require.NoError(t, err)

	chain := Chain{
		NewStoreSource(enc),
		NewEnvSource(&config.PlatformConfig{ClientID: "env_ci", ClientSecret: "env_cs"}),
	}

	// Org with a blob resolves from the store.
	creds, err := chain.Resolve(&models.Organization{CredentialsEncrypted: blob})
	require.NoError(t, err)
	assert.Equal(t, "store_ci", creds.ClientID)

	// Org without a blob falls through to the environment.
	creds, err = chain.Resolve(&models.Organization{})
	require.NoError(t, err)
	assert.Equal(t, "env_ci", creds.ClientID)
}

func TestChainPropagatesHardErrors(t *testing.T) {
	// A corrupt blob is a hard error, not a fall-through: silently syncing
	// an org with the wrong tenant's env credentials would break isolation.
	enc := testEncryptor(t)
	chain := Chain{
		NewStoreSource(enc),
		NewEnvSource(&config.PlatformConfig{ClientID: "env_ci", ClientSecret: "env_cs"}),
	}

	_, err := chain.Resolve(&models.Organization{CredentialsEncrypted: `{"client_id":"garbage"}`})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredentials)
}

func TestCredentialsStringMasksSecrets(t *testing.T) {
	creds := Credentials{ClientID: "ci_live_abcd", ClientSecret: "cs_live_wxyz"}
	s := creds.String()
	assert.NotContains(t, s, "ci_live_abcd")
	assert.NotContains(t, s, "cs_live_wxyz")
	assert.Contains(t, s, "abcd")
	assert.Contains(t, s, "wxyz")
}
