package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ClientIDFileName holds the persisted client instance id
const ClientIDFileName = "client_id"

// LoadOrCreateClientID returns the unique_id presented at login. The id is
// generated once and kept in dir so Blink sees the same client on every run.
func LoadOrCreateClientID(dir string) (string, error) {
	path := filepath.Join(dir, ClientIDFileName)

	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read client id: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	id := strings.ToUpper(uuid.NewString())
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to save client id: %w", err)
	}
	return id, nil
}
