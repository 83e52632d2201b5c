package scheduler

// StatusMap returns a copy of the internal command status map.
// This is exported for testing purposes only.
func (s *Scheduler) StatusMap() map[string]CommandStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make(map[string]CommandStatus, len(s.status))
	for k, v := range s.status {
		statuses[k] = v
	}
	return statuses
}
