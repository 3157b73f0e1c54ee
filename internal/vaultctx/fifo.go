package vaultctx

import (
	"context"
	"sync"

	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// fifoMutex is a mutual-exclusion lock that grants waiters strictly in
// arrival order, unlike sync.Mutex whose wakeup order is unspecified.
// Mutations within a vault are totally ordered by this lock, so the
// observable pre-/post-conditions of each operation reflect its
// arrival order.
type fifoMutex struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Lock blocks until the lock is granted or ctx is done. Cancellation
// while queued removes the waiter without disturbing the queue order of
// the others.
func (m *fifoMutex) Lock(ctx context.Context) error {
	m.mu.Lock()

	if !m.held {
		m.held = true
		m.mu.Unlock()

		return nil
	}

	grant := make(chan struct{})
	m.waiters = append(m.waiters, grant)
	m.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		m.mu.Lock()

		for i, w := range m.waiters {
			if w == grant {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				m.mu.Unlock()

				return vaulterr.Canceled("lock wait canceled")
			}
		}

		m.mu.Unlock()

		// The grant raced the cancellation: we already own the lock,
		// so pass it to the next waiter before reporting cancellation.
		m.Unlock()

		return vaulterr.Canceled("lock wait canceled")
	}
}

// Unlock hands the lock to the oldest waiter, or releases it when the
// queue is empty.
func (m *fifoMutex) Unlock() {
	m.mu.Lock()

	if len(m.waiters) > 0 {
		grant := m.waiters[0]
		m.waiters = m.waiters[1:]
		m.mu.Unlock()

		close(grant)

		return
	}

	m.held = false
	m.mu.Unlock()
}
