package service

// activeReaders возвращает количество открытых потоков job_id.
func (s *LifecycleService) activeReaders(jobID string) int {
	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	n := 0
	for k, st := range s.readers {
		if k.jobID == jobID {
			n += st.live
		}
	}
	return n
}
