package cache

import (
	"context"
	"sync"
	"time"

	"github.com/skininsight/backend/internal/domain/shared"
)

type entry struct {
	expiresAt time.Time
}

// InMemoryTransactionStore implements shared.TransactionStore with a map.
// Suitable for single-instance deployments and testing.
type InMemoryTransactionStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryTransactionStore creates an in-memory transaction store.
// A background goroutine reclaims expired entries.
func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	store := &InMemoryTransactionStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed records a transaction ID with a TTL.
// Returns true if the ID was newly recorded.
func (s *InMemoryTransactionStore) MarkProcessed(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[transactionID]; exists {
		if time.Now().Before(e.expiresAt) {
			return false, nil
		}
		// Expired entry, overwrite below.
	}

	s.entries[transactionID] = entry{
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

// IsProcessed checks whether a transaction ID has been seen
func (s *InMemoryTransactionStore) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[transactionID]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine
func (s *InMemoryTransactionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}

func (s *InMemoryTransactionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryTransactionStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

var _ shared.TransactionStore = (*InMemoryTransactionStore)(nil)
