package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the account from EMAIL and PASSWORD, or their
// BLINKSYNC_ prefixed forms. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) lookup() (email, password string) {
	email = firstNonEmpty(os.Getenv("BLINKSYNC_EMAIL"), os.Getenv("EMAIL"))
	password = firstNonEmpty(os.Getenv("BLINKSYNC_PASSWORD"), os.Getenv("PASSWORD"))
	return email, password
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account when its email matches or email is empty
func (e *EnvironmentStore) Retrieve(email string) (*Account, error) {
	envEmail, password := e.lookup()
	if envEmail == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && NormalizeEmail(email) != NormalizeEmail(envEmail) {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Email:        envEmail,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for email
func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
