package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AllowedAudioExtensions lists the upload extensions accepted for analysis.
var AllowedAudioExtensions = []string{".wav", ".mp3", ".flac", ".m4a", ".aiff"}

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// DeleteFile removes a file. A missing file is not an error.
func DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasAllowedExtension reports whether name ends in one of
// AllowedAudioExtensions, ignoring case.
func HasAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedAudioExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SaveToTemp copies r into a new file under dir. The file keeps the
// extension of name so the engine can use it as a format hint.
func SaveToTemp(dir, name string, r io.Reader) (string, error) {
	if err := MakeDir(dir); err != nil {
		return "", fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return f.Name(), nil
}
