package memory

// LockCount exposes the number of live per-user locks
func (s *Store) LockCount() int {
	return s.locks.size()
}
