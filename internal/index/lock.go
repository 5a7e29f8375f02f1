package index

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// lockFileName lives inside the index directory so the lock scope is
// exactly one index, not the whole project.
const lockFileName = ".build.lock"

// BuildLock serializes index builds across processes. Two concurrent
// `patchrag index` runs on the same project would otherwise interleave
// writes into the chunk store.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock rooted in the given index directory.
func NewBuildLock(indexDir string) *BuildLock {
	path := filepath.Join(indexDir, lockFileName)
	return &BuildLock{path: path, flock: flock.New(path)}
}

// TryAcquire attempts to take the build lock without blocking. A held
// lock returns ErrCodeIndexLocked rather than waiting: a queued second
// build would only redo the first one's work.
func (l *BuildLock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "create index directory")
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "acquire build lock")
	}
	if !acquired {
		return apperrors.New(apperrors.ErrCodeIndexLocked,
			"another index build is in progress", nil).
			WithSuggestion("Wait for the running build to finish, or remove " + l.path + " if it crashed")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call on an unacquired lock.
func (l *BuildLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "release build lock")
	}
	return nil
}

// Path returns the lock file location.
func (l *BuildLock) Path() string {
	return l.path
}
