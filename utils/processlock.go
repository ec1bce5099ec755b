package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ProcessLock guarantees a single owning process per bot identity.
// Two processes driving the same guilds would race on overwrites and duplicate audit records.
type ProcessLock struct {
	lockFile *flock.Flock
	lockPath string
}

// NewProcessLock creates a lock file under dir keyed by the given identity (usually the bot token).
// The identity is hashed so secrets never end up in file names.
func NewProcessLock(dir, identity string) (*ProcessLock, error) {
	AssertInvariant(identity != "", "lock identity cannot be empty")

	if dir == "" {
		dir = os.TempDir()
	}

	lockDir := filepath.Join(dir, "mentionguard")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	sum := sha256.Sum256([]byte(identity))
	lockPath := filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock")

	return &ProcessLock{
		lockFile: flock.New(lockPath),
		lockPath: lockPath,
	}, nil
}

// TryLock attempts to acquire the lock
// Returns nil if successful, error if lock is already held or other error occurs
func (l *ProcessLock) TryLock() error {
	locked, err := l.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to try lock: %w", err)
	}

	if !locked {
		return fmt.Errorf("another mentionguard instance already owns this bot")
	}

	return nil
}

// Unlock releases the lock and removes the lock file
func (l *ProcessLock) Unlock() error {
	if l.lockFile == nil {
		return nil
	}

	if err := l.lockFile.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}

	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	return nil
}

// Path returns the path to the lock file
func (l *ProcessLock) Path() string {
	return l.lockPath
}
