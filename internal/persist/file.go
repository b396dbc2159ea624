package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelmq/kestrel/internal/broker"
)

const (
	stateStem = "state"
	stateExt  = "dat"

	// UTC at millisecond precision with a numeric offset. Timestamps are
	// always rendered in UTC, so lexicographic filename order equals
	// chronological order; retention depends on this.
	timestampLayout = "2006-01-02T15:04:05.000-0700"

	// DefaultRetention keeps the current state file and the previous one.
	DefaultRetention = 2
)

// FilePersistor stores state snapshots in a directory of timestamped
// artifacts plus a well-known pointer to the latest one. It is not safe
// for concurrent use; the snapshotter serializes all access.
type FilePersistor struct {
	dir    string
	codec  Codec
	keep   int
	logger *zap.Logger
	now    func() time.Time
}

// NewFilePersistor creates a persistor over dir, pruning to keep artifacts
// after each store (DefaultRetention when keep < 1). The directory must
// exist.
func NewFilePersistor(dir string, codec Codec, keep int, logger *zap.Logger) *FilePersistor {
	if keep < 1 {
		keep = DefaultRetention
	}
	return &FilePersistor{
		dir:    dir,
		codec:  codec,
		keep:   keep,
		logger: logger,
		now:    time.Now,
	}
}

func (p *FilePersistor) pointerPath() string {
	return filepath.Join(p.dir, stateStem+"."+stateExt)
}

// Load returns the state the pointer currently names, or an empty state
// when no pointer exists yet (first run).
func (p *FilePersistor) Load() (broker.State, error) {
	pointer := p.pointerPath()
	f, err := openPointer(pointer)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Info("no persisted state found", zap.String("dir", p.dir))
			return broker.State{}, nil
		}
		return broker.State{}, fmt.Errorf("%w: %s: %w", ErrFileOpen, pointer, err)
	}
	defer f.Close()

	state, err := p.codec.Decode(f)
	if err != nil {
		return broker.State{}, fmt.Errorf("%w: %s: %w", ErrDeserialize, pointer, err)
	}
	return state, nil
}

// Store writes state to a new timestamped file, repoints the pointer, and
// prunes old artifacts. A failed write removes the partial file and leaves
// the pointer and every prior artifact untouched, so the pointer never
// names an incomplete file.
func (p *FilePersistor) Store(state broker.State) error {
	name := fmt.Sprintf("%s.%s.%s", stateStem, p.now().UTC().Format(timestampLayout), stateExt)
	path := filepath.Join(p.dir, name)

	p.logger.Info("persisting state", zap.String("file", path))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}

	if err := p.codec.Encode(f, state); err != nil {
		f.Close()
		p.discardPartial(path)
		return fmt.Errorf("%w: %s: %w", ErrSerialize, path, err)
	}
	if err := f.Close(); err != nil {
		p.discardPartial(path)
		return fmt.Errorf("%w: %s: %w", ErrSerialize, path, err)
	}

	// The write is complete; only now may the pointer move.
	if err := setPointer(p.pointerPath(), name); err != nil {
		return err
	}

	if err := p.prune(); err != nil {
		return err
	}

	p.logger.Info("persisted state", zap.String("file", path))
	return nil
}

func (p *FilePersistor) discardPartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove partial state file",
			zap.String("file", path), zap.Error(err))
	}
}

// prune deletes all state files beyond the keep most recent. Filenames
// embed UTC timestamps, so sorting descending by name is newest-first.
func (p *FilePersistor) prune() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadDir, p.dir, err)
	}

	pointerName := stateStem + "." + stateExt
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, stateStem+".") || !strings.HasSuffix(name, "."+stateExt) {
			continue
		}
		if name == pointerName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed concurrently; nothing to prune
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names[min(p.keep, len(names)):] {
		// Deletion paths are always joined to the state directory, never
		// resolved against the working directory.
		path := filepath.Join(p.dir, name)
		p.logger.Debug("pruning old state file", zap.String("file", path))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %s: %w", ErrFileUnlink, path, err)
		}
	}
	return nil
}
