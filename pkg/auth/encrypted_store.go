package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"bookmarkvault/pkg/storage"
)

const (
	vaultVersion    = 2
	vaultKDF        = "pbkdf2-sha256"
	vaultIterations = 210000
	vaultSaltSize   = 16
	vaultKeySize    = 32

	// EnvPassphrase overrides the generated passphrase file
	EnvPassphrase = "BOOKMARKVAULT_PASSPHRASE"
)

// vaultAAD binds the ciphertext to this file format
var vaultAAD = []byte("bookmarkvault/credentials/v2")

// vaultFile is the on-disk envelope. Byte slices are base64 encoded by encoding/json.
type vaultFile struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	Iterations int       `json:"iterations"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EncryptedFileStore implements CredentialStore over one AES-GCM sealed file.
// The key is derived from a passphrase with PBKDF2 and cached per salt.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
}

// NewEncryptedFileStore creates a store at path. The passphrase comes from
// BOOKMARKVAULT_PASSPHRASE or a generated .passphrase file next to it.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, err
	}

	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store adds or replaces a credential
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(creds map[string]Credential) error {
		creds[cred.Name] = *cred
		return nil
	})
}

// Retrieve gets a credential by account name
func (e *EncryptedFileStore) Retrieve(name string) (*Credential, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	creds, err := e.open()
	if err != nil {
		return nil, err
	}
	cred, ok := creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns every stored credential ordered by name
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, err := e.open()
	if err != nil {
		return nil, err
	}

	out := make([]*Credential, 0, len(creds))
	for name := range creds {
		c := creds[name]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a credential. The file goes away with the last one.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(creds map[string]Credential) error {
		if _, ok := creds[name]; !ok {
			return ErrCredentialsNotFound
		}
		delete(creds, name)
		return nil
	})
}

// Exists checks if a credential exists
func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// update loads the vault, applies fn and writes the result back
func (e *EncryptedFileStore) update(fn func(map[string]Credential) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, err := e.open()
	if err != nil {
		return err
	}
	if err := fn(creds); err != nil {
		return err
	}

	if len(creds) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credential file: %w", err)
		}
		e.salt, e.key = nil, nil
		return nil
	}
	return e.seal(creds)
}

// open decrypts the vault. A missing file is an empty vault.
func (e *EncryptedFileStore) open() (map[string]Credential, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return make(map[string]Credential), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if vf.Version != vaultVersion || vf.KDF != vaultKDF {
		return nil, fmt.Errorf("unsupported credential file format (version %d, kdf %q)", vf.Version, vf.KDF)
	}

	gcm, err := e.cipherFor(vf.Salt, vf.Iterations)
	if err != nil {
		return nil, err
	}
	if len(vf.Nonce) != gcm.NonceSize() {
		return nil, errors.New("credential file has a malformed nonce")
	}

	plaintext, err := gcm.Open(nil, vf.Nonce, vf.Ciphertext, vaultAAD)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential file (wrong passphrase?): %w", err)
	}

	creds := make(map[string]Credential)
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

// seal encrypts creds under the current salt, or a fresh one, and replaces the file
func (e *EncryptedFileStore) seal(creds map[string]Credential) error {
	salt := e.salt
	if salt == nil {
		salt = make([]byte, vaultSaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	gcm, err := e.cipherFor(salt, vaultIterations)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		KDF:        vaultKDF,
		Iterations: vaultIterations,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, vaultAAD),
		UpdatedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}

	return storage.WriteFileAtomic(e.path, 0600, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

// cipherFor returns an AEAD for salt, deriving the key only when the salt changes
func (e *EncryptedFileStore) cipherFor(salt []byte, iterations int) (cipher.AEAD, error) {
	if len(salt) == 0 || iterations <= 0 {
		return nil, errors.New("credential file has no key parameters")
	}
	if e.key == nil || string(e.salt) != string(salt) {
		e.key = pbkdf2.Key(e.passphrase, salt, iterations, vaultKeySize, sha256.New)
		e.salt = append([]byte(nil), salt...)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadPassphrase reads the passphrase from the environment or from path,
// creating a random one on first use
func loadPassphrase(path string) ([]byte, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return []byte(pass), nil
	}

	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	pass := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, pass); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	encoded := fmt.Appendf(nil, "%x", pass)

	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return encoded, nil
}
