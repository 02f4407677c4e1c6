// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

// Package credentials resolves per-organization API credentials.
//
// At rest, an organization's credentials are a JSON object of named secrets
// with each value independently AES-GCM encrypted, so a single leaked value
// never exposes its siblings and individual secrets can be rotated without
// re-encrypting the whole blob.
package credentials

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pledgeline/pledgeline/internal/config"
)

// Well-known secret names within a credential blob.
const (
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
)

var (
	// ErrMissingSecret is returned when a blob lacks a required secret.
	ErrMissingSecret = errors.New("credential blob missing required secret")

	// ErrEmptyBlob is returned for an empty or absent credential blob.
	ErrEmptyBlob = errors.New("credential blob is empty")
)

// Credentials is the resolved, decrypted credential set for one organization
// sync run. It is built once at run start and passed down the call chain;
// it is never cached across organizations and never logged.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// String implements fmt.Stringer with masking so accidental logging of the
// struct cannot leak secrets.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{client_id: %s, client_secret: %s}",
		config.MaskCredential(c.ClientID), config.MaskCredential(c.ClientSecret))
}

// EncryptBlob encrypts each named secret independently and returns the JSON
// blob for at-rest storage.
func EncryptBlob(enc *config.CredentialEncryptor, secrets map[string]string) (string, error) {
	if len(secrets) == 0 {
		return "", ErrEmptyBlob
	}

	encrypted := make(map[string]string, len(secrets))
	for name, value := range secrets {
		ct, err := enc.Encrypt(value)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt secret %q: %w", name, err)
		}
		encrypted[name] = ct
	}

	blob, err := json.Marshal(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential blob: %w", err)
	}
	return string(blob), nil
}

// DecryptBlob decrypts every secret in a stored blob.
func DecryptBlob(enc *config.CredentialEncryptor, blob string) (map[string]string, error) {
	if blob == "" {
		return nil, ErrEmptyBlob
	}

	var encrypted map[string]string
	if err := json.Unmarshal([]byte(blob), &encrypted); err != nil {
		return nil, fmt.Errorf("failed to parse credential blob: %w", err)
	}
	if len(encrypted) == 0 {
		return nil, ErrEmptyBlob
	}

	secrets := make(map[string]string, len(encrypted))
	for name, ct := range encrypted {
		value, err := enc.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt secret %q: %w", name, err)
		}
		secrets[name] = value
	}
	return secrets, nil
}

// credentialsFromSecrets validates required secret names and builds the
// resolved Credentials.
func credentialsFromSecrets(secrets map[string]string) (Credentials, error) {
	clientID, ok := secrets[KeyClientID]
	if !ok || clientID == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingSecret, KeyClientID)
	}
	clientSecret, ok := secrets[KeyClientSecret]
	if !ok || clientSecret == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrMissingSecret, KeyClientSecret)
	}
	return Credentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}
