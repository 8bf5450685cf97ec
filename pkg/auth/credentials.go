package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Credential is an OAuth2 user token for the X API
type Credential struct {
	Name         string    `json:"name"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Expired reports whether the access token is past, or within skew of, its expiry.
// A zero ExpiresAt never expires.
func (c *Credential) Expired(now time.Time, skew time.Duration) bool {
	return !c.ExpiresAt.IsZero() && !now.Add(skew).Before(c.ExpiresAt)
}

// CanRefresh reports whether the credential carries what a token refresh needs
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != ""
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves a credential under its Name
	Store(cred *Credential) error

	// Retrieve gets the credential with the given name
	Retrieve(name string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential with the given name
	Delete(name string) error

	// Exists checks if a credential exists
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager trying the OS keyring, then an encrypted
// file in the config directory, then the environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over an explicit store chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the credential in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return errors.New("credential name is required")
	}
	if cred.AccessToken == "" {
		return errors.New("access token is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a credential from the first store that has it
func (m *Manager) Retrieve(name string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(name); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the named credential if present, otherwise the
// environment credential, otherwise the most recently modified one
func (m *Manager) RetrieveDefault(name string) (*Credential, error) {
	if name != "" {
		if cred, err := m.Retrieve(name); err == nil {
			return cred, nil
		}
	}

	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if cred, err := envStore.Retrieve(""); err == nil {
				return cred, nil
			}
		}
	}

	creds, err := m.List()
	if err == nil && len(creds) > 0 {
		return creds[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns credentials from all stores, newest first. When a name is
// present in several stores the most recently modified copy wins.
func (m *Manager) List() ([]*Credential, error) {
	byName := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byName[cred.Name]; !ok || cred.LastModified.After(existing.LastModified) {
				byName[cred.Name] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byName))
	for _, cred := range byName {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Delete removes a credential from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	creds, err := m.List()
	if err != nil {
		return err
	}

	for _, cred := range creds {
		_ = m.Delete(cred.Name) // environment entries cannot be deleted
	}

	return nil
}

// RefreshFunc exchanges a refresh token for a new token pair
type RefreshFunc func(ctx context.Context, clientID, refreshToken string) (access, refresh string, expiresIn time.Duration, err error)

// EnsureFresh refreshes cred when it is about to expire and stores the result.
// Credentials that are still valid, or cannot be refreshed, are returned as is.
func (m *Manager) EnsureFresh(ctx context.Context, cred *Credential, refresh RefreshFunc) (*Credential, error) {
	if !cred.Expired(time.Now(), time.Minute) || !cred.CanRefresh() {
		return cred, nil
	}

	access, refreshToken, expiresIn, err := refresh(ctx, cred.ClientID, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}

	updated := *cred
	updated.AccessToken = access
	if refreshToken != "" {
		updated.RefreshToken = refreshToken
	}
	updated.ExpiresAt = time.Time{}
	if expiresIn > 0 {
		updated.ExpiresAt = time.Now().Add(expiresIn)
	}

	if err := m.Store(&updated); err != nil {
		return &updated, fmt.Errorf("refreshed token could not be saved: %w", err)
	}
	return &updated, nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "bookmarkvault")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "bookmarkvault")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "bookmarkvault")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "bookmarkvault")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeCredential returns a copy of cred with the tokens masked
func SanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	masked := *cred
	masked.AccessToken = maskString(cred.AccessToken)
	if cred.RefreshToken != "" {
		masked.RefreshToken = maskString(cred.RefreshToken)
	}
	return &masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
