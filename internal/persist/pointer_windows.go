//go:build windows

package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Symlink creation needs elevation on Windows, so the pointer is a small
// marker file holding the target filename, replaced with an atomic rename.
// This preserves the same guarantee as the symlink form: the pointer is
// never observed naming an incomplete file.

func setPointer(pointer, target string) error {
	tmp := pointer + ".tmp"
	if err := os.WriteFile(tmp, []byte(target), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPointerCreate, tmp, err)
	}
	if err := os.Rename(tmp, pointer); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrPointerCreate, pointer, err)
	}
	return nil
}

func openPointer(pointer string) (*os.File, error) {
	name, err := os.ReadFile(pointer)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(filepath.Dir(pointer), strings.TrimSpace(string(name))))
}
