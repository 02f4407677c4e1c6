// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package credentials

import (
	"errors"

	"github.com/pledgeline/pledgeline/internal/config"
	"github.com/pledgeline/pledgeline/internal/models"
)

// ErrNoCredentials is returned when a source cannot produce credentials for
// the organization.
var ErrNoCredentials = errors.New("no credentials available for organization")

// Source resolves credentials for one organization sync run. Resolution
// happens exactly once at run start; the result is passed down the call
// chain rather than re-read mid-run.
type Source interface {
	Resolve(org *models.Organization) (Credentials, error)
}

// EnvSource serves the environment-configured credentials regardless of
// organization. Used for single-tenant bootstrap deployments where the
// platform credentials live in PLATFORM_CLIENT_ID / PLATFORM_CLIENT_SECRET.
type EnvSource struct {
	clientID     string
	clientSecret string
}

// NewEnvSource captures the environment-sourced credentials from the loaded
// config. The environment is read once at startup, never mid-run.
func NewEnvSource(cfg *config.PlatformConfig) *EnvSource {
	return &EnvSource{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// Resolve implements Source.
func (s *EnvSource) Resolve(_ *models.Organization) (Credentials, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{ClientID: s.clientID, ClientSecret: s.clientSecret}, nil
}

// StoreSource decrypts the organization's stored credential blob on read.
type StoreSource struct {
	encryptor *config.CredentialEncryptor
}

// NewStoreSource creates a store-backed credential source.
func NewStoreSource(encryptor *config.CredentialEncryptor) *StoreSource {
	return &StoreSource{encryptor: encryptor}
}

// Resolve implements Source.
func (s *StoreSource) Resolve(org *models.Organization) (Credentials, error) {
	if org == nil || org.CredentialsEncrypted == "" {
		return Credentials{}, ErrNoCredentials
	}
	secrets, err := DecryptBlob(s.encryptor, org.CredentialsEncrypted)
	if err != nil {
		return Credentials{}, err
	}
	return credentialsFromSecrets(secrets)
}

// Chain tries each source in order, returning the first that resolves. The
// store-sourced blob wins over the environment fallback when both exist.
type Chain []Source

// Resolve implements Source.
func (c Chain) Resolve(org *models.Organization) (Credentials, error) {
	for _, src := range c {
		creds, err := src.Resolve(org)
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			return Credentials{}, err
		}
	}
	return Credentials{}, ErrNoCredentials
}
