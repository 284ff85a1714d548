package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "blinksync"

	// keyringIndex lists the stored emails; keychains cannot be enumerated
	keyringIndex = "blinksync:accounts"
)

// KeyringStore keeps one keychain entry per normalised email holding only
// the password, plus an index entry mapping emails to their last change.
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore returns a store when the system keychain answers
func NewKeyringStore() (*KeyringStore, error) {
	if _, err := keyring.Get(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &KeyringStore{}, nil
}

// Store saves the password of account in the keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Password == "" {
		return ErrInvalidCredentials
	}
	email := NormalizeEmail(account.Email)
	if email == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(keyringService, email, account.Password); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	index, err := k.readIndex()
	if err != nil {
		return err
	}
	modified := account.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	index[email] = modified
	return k.writeIndex(index)
}

// Retrieve returns the account stored for email
func (k *KeyringStore) Retrieve(email string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.retrieve(email)
}

func (k *KeyringStore) retrieve(email string) (*Account, error) {
	password, err := keyring.Get(keyringService, email)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	account := &Account{Email: email, Password: password}
	if index, err := k.readIndex(); err == nil {
		account.LastModified = index[email]
	}
	return account, nil
}

// List returns the indexed accounts ordered by email. Index entries whose
// password is gone are skipped.
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(index))
	for email := range index {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	accounts := make([]*Account, 0, len(emails))
	for _, email := range emails {
		account, err := k.retrieve(email)
		if errors.Is(err, ErrCredentialsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the password for email and its index entry
func (k *KeyringStore) Delete(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(keyringService, email)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	index, indexErr := k.readIndex()
	if indexErr != nil {
		return indexErr
	}
	_, indexed := index[email]
	if indexed {
		delete(index, email)
		if err := k.writeIndex(index); err != nil {
			return err
		}
	}

	if err != nil && !indexed {
		return ErrCredentialsNotFound
	}
	return nil
}

// Exists reports whether a password is stored for email
func (k *KeyringStore) Exists(email string) bool {
	_, err := k.Retrieve(email)
	return err == nil
}

func (k *KeyringStore) readIndex() (map[string]time.Time, error) {
	index := make(map[string]time.Time)
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &index); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return index, nil
}

func (k *KeyringStore) writeIndex(index map[string]time.Time) error {
	if len(index) == 0 {
		if err := keyring.Delete(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
