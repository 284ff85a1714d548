package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	passwordFileVersion = 1

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "BLINKSYNC_PASSPHRASE"

	// PassphraseFileName is created next to the password file when PassphraseEnv is unset
	PassphraseFileName = ".passphrase"
)

// sealedAAD binds the ciphertext to this file format
var sealedAAD = []byte("blinksync/passwords/v1")

// ErrInsecurePermissions is returned when a secret file is readable by group or others
var ErrInsecurePermissions = errors.New("secret file is accessible by other users")

// EncryptedFileStore keeps account passwords in a single AES-GCM sealed file.
// The key is derived with PBKDF2 from PassphraseEnv or a generated passphrase
// file. Entries are keyed by normalised email.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// passwordFile is the on-disk layout. Salt and Sealed are base64 in JSON.
type passwordFile struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// storedPassword is one plaintext entry inside the sealed payload
type storedPassword struct {
	Password string    `json:"password"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the password file at path, creating its
// directory and, when needed, the passphrase file
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves the password of account
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Password == "" {
		return ErrInvalidCredentials
	}
	email := NormalizeEmail(account.Email)
	if email == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.load()
	if err != nil {
		return err
	}

	modified := account.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	entries[email] = storedPassword{Password: account.Password, Modified: modified}
	return e.save(entries)
}

// Retrieve returns the account stored for email
func (e *EncryptedFileStore) Retrieve(email string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.load()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[email]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return entry.account(email), nil
}

// List returns every stored account ordered by email
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.load()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(entries))
	for email, entry := range entries {
		accounts = append(accounts, entry.account(email))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}

// Delete removes the password for email. The file is removed with its last entry.
func (e *EncryptedFileStore) Delete(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.load()
	if err != nil {
		return err
	}
	if _, ok := entries[email]; !ok {
		return ErrCredentialsNotFound
	}
	delete(entries, email)
	return e.save(entries)
}

// Exists reports whether a password is stored for email
func (e *EncryptedFileStore) Exists(email string) bool {
	account, err := e.Retrieve(email)
	return err == nil && account != nil
}

func (s storedPassword) account(email string) *Account {
	return &Account{Email: email, Password: s.Password, LastModified: s.Modified}
}

// load decrypts the password file. A missing file is an empty store.
func (e *EncryptedFileStore) load() (map[string]storedPassword, error) {
	content, err := readPrivate(e.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]storedPassword), nil
	}
	if err != nil {
		return nil, err
	}

	var file passwordFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse password file: %w", err)
	}
	if file.Version != passwordFileVersion {
		return nil, fmt.Errorf("unsupported password file version %d", file.Version)
	}

	plaintext, err := open(file.Sealed, e.key(file.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt password file: %w", err)
	}

	entries := make(map[string]storedPassword)
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse stored passwords: %w", err)
	}
	return entries, nil
}

// save seals entries under a fresh salt and replaces the file atomically
func (e *EncryptedFileStore) save(entries map[string]storedPassword) error {
	if len(entries) == 0 {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove password file: %w", err)
		}
		return nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal passwords: %w", err)
	}
	sealed, err := seal(plaintext, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt passwords: %w", err)
	}

	content, err := json.MarshalIndent(passwordFile{
		Version:  passwordFileVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal password file: %w", err)
	}

	tempFile := e.path + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write password file: %w", err)
	}
	if err := os.Rename(tempFile, e.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace password file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns PassphraseEnv, else the passphrase file in dir,
// generating it on first use
func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, PassphraseFileName)
	content, err := readPrivate(path)
	switch {
	case err == nil && len(content) > 0:
		return content, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, passphrase, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// readPrivate reads a secret file, refusing it when group or others have access
func readPrivate(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if perm := info.Mode().Perm(); runtime.GOOS != "windows" && perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %04o, expected 0600", ErrInsecurePermissions, path, perm)
	}
	return os.ReadFile(path)
}

// seal encrypts plaintext with AES-GCM and prefixes the nonce
func seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, sealedAAD), nil
}

// open reverses seal
func open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, sealedAAD)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
