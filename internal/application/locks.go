package application

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultLockWait bounds how long a writer waits for another writer of the same room.
const DefaultLockWait = 2 * time.Second

// roomLocks serialises writers per room. Each room gets a one-slot semaphore;
// rooms never block each other.
type roomLocks struct {
	wait time.Duration
	sems *xsync.Map[string, chan struct{}]
}

func newRoomLocks(wait time.Duration) *roomLocks {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &roomLocks{wait: wait, sems: xsync.NewMap[string, chan struct{}]()}
}

// acquire takes the room's slot. It returns errLockTimeout when the wait bound
// passes first and the context error when ctx ends first.
func (l *roomLocks) acquire(ctx context.Context, roomID string) (release func(), waited time.Duration, err error) {
	sem, _ := l.sems.LoadOrCompute(roomID, func() (chan struct{}, bool) {
		return make(chan struct{}, 1), false
	})

	started := time.Now()
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, time.Since(started), nil
	default:
	}

	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, time.Since(started), nil
	case <-timer.C:
		return nil, time.Since(started), errLockTimeout
	case <-ctx.Done():
		return nil, time.Since(started), ctx.Err()
	}
}
