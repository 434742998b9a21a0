package domain

import (
	"context"
	"time"
)

// RotationState is the last successful rotation of a live file.
type RotationState struct {
	TargetPath    string    `json:"target_path" db:"target_path"`
	LastRotatedAt time.Time `json:"last_rotated_at" db:"last_rotated_at"`
}

type StateRepository interface {
	LastRotatedAt(ctx context.Context, targetPath string) (time.Time, bool, error)
	RecordSuccess(ctx context.Context, targetPath string, at time.Time) error
	Prune(ctx context.Context, keep func(targetPath string) bool) error
	Flush(ctx context.Context) error
	All(ctx context.Context) ([]RotationState, error)
}

// Locker hands out per-target advisory locks. ok is false when another run
// holds the lock.
type Locker interface {
	TryLock(target string) (unlock func() error, ok bool, err error)
}
