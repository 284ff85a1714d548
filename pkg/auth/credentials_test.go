package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Email: "me@example.com", Password: "correcthorsebattery"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "correcthorsebattery", retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "co...ry", sanitized.Password)
	assert.Equal(t, account.Email, sanitized.Email)
	assert.Equal(t, "********", SanitizeAccount(&Account{Password: "short"}).Password)

	require.NoError(t, manager.Delete("me@example.com"))
	_, err = manager.Retrieve("me@example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, mockStore.Count())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store(&Account{Password: "pw"}))
	assert.Error(t, manager.Store(&Account{Email: "me@example.com"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Account{Email: "me@example.com", Password: "pw"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	retrieved, err := manager.Retrieve("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pw", retrieved.Password)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	require.NoError(t, older.Store(&Account{Email: "me@example.com", Password: "old", LastModified: time.Unix(100, 0)}))
	require.NoError(t, newer.Store(&Account{Email: "me@example.com", Password: "new", LastModified: time.Unix(200, 0)}))

	accounts, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "new", accounts[0].Password)
}

func TestManagerDeleteMissing(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())
	err := manager.Delete("nobody@example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv("EMAIL", "env@example.com")
	t.Setenv("PASSWORD", "envpass")

	stored := NewMockStore()
	require.NoError(t, stored.Store(&Account{Email: "stored@example.com", Password: "pw"}))

	account, err := NewManagerWithStores(stored, NewEnvironmentStore()).RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", account.Email)
}

func TestRetrieveDefaultNothing(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")
	t.Setenv("BLINKSYNC_EMAIL", "")
	t.Setenv("BLINKSYNC_PASSWORD", "")

	_, err := NewManagerWithStores(NewMockStore(), NewEnvironmentStore()).RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Email: "me@example.com", Password: "plaintext-secret"}))
	require.NoError(t, store.Store(&Account{Email: "other@example.com", Password: "another-secret"}))

	retrieved, err := store.Retrieve("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "plaintext-secret", retrieved.Password)
	assert.True(t, store.Exists("other@example.com"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("plaintext-secret")))
	assert.False(t, bytes.Contains(content, []byte("me@example.com")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	require.NoError(t, store.Delete("me@example.com"))
	require.NoError(t, store.Delete("other@example.com"))
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, store.Delete("other@example.com"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Email: "me@example.com", Password: "pw"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("me@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decrypt")
}

func TestEncryptedFileStoreGeneratesPassphraseFile(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)

	pass, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.NotEmpty(t, pass)

	// a second store reuses the same passphrase
	_, err = NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, pass, again)
}

func TestEncryptedFileStoreNormalisesEmail(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Email: "  Me@Example.COM ", Password: "pw1"}))
	require.NoError(t, store.Store(&Account{Email: "me@example.com", Password: "pw2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "me@example.com", accounts[0].Email)
	assert.Equal(t, "pw2", accounts[0].Password)

	retrieved, err := store.Retrieve("ME@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pw2", retrieved.Password)
	require.NoError(t, store.Delete("Me@Example.com"))
	assert.False(t, store.Exists("me@example.com"))
}

func TestEncryptedFileStoreRejectsEmptyPassword(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	assert.ErrorIs(t, store.Store(&Account{Email: "me@example.com"}), ErrInvalidCredentials)
	assert.ErrorIs(t, store.Store(&Account{Email: "   ", Password: "pw"}), ErrInvalidCredentials)
}

func TestEncryptedFileStoreRefusesSharedPasswordFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Email: "me@example.com", Password: "pw"}))

	require.NoError(t, os.Chmod(path, 0644))
	_, err = store.Retrieve("me@example.com")
	assert.ErrorIs(t, err, ErrInsecurePermissions)
	assert.ErrorIs(t, store.Store(&Account{Email: "b@example.com", Password: "pw"}), ErrInsecurePermissions)
}

func TestEncryptedFileStoreRefusesSharedPassphraseFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PassphraseFileName), []byte("guessable"), 0644))

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	assert.ErrorIs(t, err, ErrInsecurePermissions)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Email: "B@example.com", Password: "pw-b"}))
	require.NoError(t, store.Store(&Account{Email: "a@example.com", Password: "pw-a"}))

	stored, err := keyring.Get(keyringService, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pw-b", stored)

	account, err := store.Retrieve(" b@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", account.Email)
	assert.Equal(t, "pw-b", account.Password)
	assert.False(t, account.LastModified.IsZero())

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a@example.com", accounts[0].Email)
	assert.Equal(t, "b@example.com", accounts[1].Email)

	require.NoError(t, store.Delete("A@example.com"))
	assert.False(t, store.Exists("a@example.com"))
	assert.ErrorIs(t, store.Delete("a@example.com"), ErrCredentialsNotFound)

	require.NoError(t, store.Delete("b@example.com"))
	_, err = keyring.Get(keyringService, keyringIndex)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestKeyringStoreUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	_, err := NewKeyringStore()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestManagerNormalisesEmail(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Email: " Me@Example.com", Password: "pw"}
	require.NoError(t, manager.Store(account))
	assert.Equal(t, "me@example.com", account.Email)

	retrieved, err := manager.Retrieve("ME@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "pw", retrieved.Password)

	require.NoError(t, manager.Delete("me@example.COM"))
	assert.Equal(t, 0, mockStore.Count())
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("EMAIL", "old@example.com")
	t.Setenv("PASSWORD", "oldpass")
	t.Setenv("BLINKSYNC_EMAIL", "new@example.com")
	t.Setenv("BLINKSYNC_PASSWORD", "")

	store := NewEnvironmentStore()
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", account.Email)
	assert.Equal(t, "oldpass", account.Password)

	assert.True(t, store.Exists("new@example.com"))
	assert.False(t, store.Exists("old@example.com"))
	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("new@example.com"), ErrStoreUnavailable)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestLoadOrCreateClientID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	id, err := LoadOrCreateClientID(dir)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(id), id)

	again, err := LoadOrCreateClientID(dir)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestLoadOrCreateClientIDReplacesGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientIDFileName), []byte("not-a-uuid"), 0600))

	id, err := LoadOrCreateClientID(dir)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", id)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}
