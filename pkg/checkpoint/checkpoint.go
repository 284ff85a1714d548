package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"blinksync/pkg/logger"
)

// StateFileName is the name of the report inside the data directory
const StateFileName = "sync_state.json"

// stateVersion is bumped when the file layout changes
const stateVersion = 1

// Counts tallies download outcomes
type Counts struct {
	Downloaded int   `json:"downloaded"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// Add folds other into c
func (c *Counts) Add(other Counts) {
	c.Downloaded += other.Downloaded
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.Bytes += other.Bytes
}

// CycleReport describes one completed enumeration and download pass
type CycleReport struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Networks       int       `json:"networks"`
	Cameras        int       `json:"cameras"`
	CameraFailures int       `json:"camera_failures"`
	Pages          int       `json:"pages"`
	ListingRetries int       `json:"listing_retries"`
	Thumbnails     Counts    `json:"thumbnails"`
	Videos         Counts    `json:"videos"`
	// NewestMedia is the latest created_at seen this cycle
	NewestMedia time.Time `json:"newest_media,omitempty"`
}

// Duration returns how long the cycle took
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// State is the persisted report
type State struct {
	Email       string      `json:"email"`
	AccountID   int64       `json:"account_id"`
	Cycles      int         `json:"cycles"`
	LastCycle   CycleReport `json:"last_cycle"`
	Totals      Counts      `json:"totals"`
	NewestMedia time.Time   `json:"newest_media,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Version     int         `json:"version"`
}

// Manager reads and writes the state file
type Manager struct {
	statePath string
	logger    logger.Logger
}

// NewManager creates a manager whose state file lives in dir
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		statePath: filepath.Join(dir, StateFileName),
		logger:    log,
	}, nil
}

// NewDefaultManager creates a manager in the platform data directory
func NewDefaultManager(log logger.Logger) (*Manager, error) {
	dataDir, err := DataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManager(dataDir, log)
}

// Path returns the state file path
func (m *Manager) Path() string {
	return m.statePath
}

// Load reads the state file. A missing file yields nil, nil.
func (m *Manager) Load() (*State, error) {
	file, err := os.Open(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

// Save writes state atomically
func (m *Manager) Save(state *State) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	state.Version = stateVersion

	tempPath := m.statePath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, m.statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	m.logger.DebugWithFields("Sync state saved", map[string]interface{}{
		"path":   m.statePath,
		"cycles": state.Cycles,
	})
	return nil
}

// RecordCycle folds report into the stored state and saves it
func (m *Manager) RecordCycle(email string, accountID int64, report CycleReport) (*State, error) {
	state, err := m.Load()
	if err != nil {
		m.logger.WithError(err).Warn("Discarding unreadable sync state")
		state = nil
	}
	if state == nil || state.Email != email || state.AccountID != accountID {
		state = &State{Email: email, AccountID: accountID}
	}

	state.Cycles++
	state.LastCycle = report
	state.Totals.Add(report.Thumbnails)
	state.Totals.Add(report.Videos)
	if report.NewestMedia.After(state.NewestMedia) {
		state.NewestMedia = report.NewestMedia
	}

	if err := m.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Delete removes the state file
func (m *Manager) Delete() error {
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Exists checks if a state file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.statePath)
	return err == nil
}

// DataDirectory returns the blinksync data directory for the current OS
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "blinksync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "blinksync")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "blinksync")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "blinksync")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
