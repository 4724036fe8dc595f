package storage

import "time"

// SetClock replaces the store's time source.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
