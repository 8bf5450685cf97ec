package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvBearerToken  = "X_BEARER_TOKEN"
	EnvAccessToken  = "BOOKMARKVAULT_ACCESS_TOKEN"
	EnvRefreshToken = "BOOKMARKVAULT_REFRESH_TOKEN"
	EnvClientID     = "BOOKMARKVAULT_CLIENT_ID"
)

// EnvironmentStore implements CredentialStore over environment variables.
// It is read only and useful for cron jobs and containers.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

func accessTokenFromEnv() string {
	if v := os.Getenv(EnvAccessToken); v != "" {
		return v
	}
	return os.Getenv(EnvBearerToken)
}

// Retrieve builds a credential from the environment. The name is only a label.
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	token := accessTokenFromEnv()
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = "env"
	}

	return &Credential{
		Name:         name,
		AccessToken:  token,
		RefreshToken: os.Getenv(EnvRefreshToken),
		ClientID:     os.Getenv(EnvClientID),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment credential if one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential is set
func (e *EnvironmentStore) Exists(name string) bool {
	return accessTokenFromEnv() != ""
}
