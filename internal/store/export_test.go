package store

import "time"

// SetClock replaces the time source used by Save.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}
