//go:build !windows

package persist

import (
	"fmt"
	"os"
)

// The pointer is a symlink holding the target filename relative to the
// state directory, so the directory can be moved wholesale.

// setPointer repoints the well-known pointer at target: remove the old
// link if present, then link the new file. Because this runs strictly
// after the target write completes, the pointer never names an incomplete
// file; the brief unlink-then-relink gap is accepted.
func setPointer(pointer, target string) error {
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %w", ErrPointerUnlink, pointer, err)
	}
	if err := os.Symlink(target, pointer); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPointerCreate, pointer, err)
	}
	return nil
}

// openPointer opens the state file the pointer currently names. A missing
// or dangling pointer surfaces as os.ErrNotExist.
func openPointer(pointer string) (*os.File, error) {
	return os.Open(pointer)
}
