package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// RootDirName is the directory created inside the save directory
	RootDirName = "Blink"

	// PartialSuffix marks an incomplete download
	PartialSuffix = ".part"
)

// Manager handles the mirror tree under a save directory
type Manager struct {
	saveDir string
}

// NewManager creates a new storage manager rooted at saveDir
func NewManager(saveDir string) (*Manager, error) {
	if saveDir == "" {
		return nil, errors.New("save directory is empty")
	}
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &Manager{saveDir: saveDir}, nil
}

// Root returns the Blink directory inside the save directory
func (m *Manager) Root() string {
	return filepath.Join(m.saveDir, RootDirName)
}

// CameraDir returns the directory holding one camera's files
func (m *Manager) CameraDir(network, camera string) string {
	return filepath.Join(m.Root(), SanitizeName(network), SanitizeName(camera))
}

// ThumbnailPath returns the destination of a camera thumbnail
func (m *Manager) ThumbnailPath(network, camera, thumbnailID string) string {
	return filepath.Join(m.CameraDir(network, camera), "thumbnail_"+SanitizeName(thumbnailID)+".jpg")
}

// VideoPath returns the destination of a clip named by its capture time stem
func (m *Manager) VideoPath(network, camera, stem string) string {
	return filepath.Join(m.CameraDir(network, camera), SanitizeName(stem)+".mp4")
}

// Exists reports whether path is already present
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save streams r into path through a temporary ".part" file and returns the byte count.
// Nothing is left at path or at the temporary file when the copy fails.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + PartialSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}

// CleanupPartials removes ".part" files left by an interrupted run and
// returns how many were deleted.
func (m *Manager) CleanupPartials() (int, error) {
	removed := 0
	err := filepath.WalkDir(m.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), PartialSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// SanitizeName turns a remote network, camera or file name into a single
// safe path element.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	switch name {
	case "":
		return "unnamed"
	case ".", "..":
		return "_"
	}
	return name
}
