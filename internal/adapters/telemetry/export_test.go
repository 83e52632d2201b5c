package telemetry

// Batcher returns the span's batch processor, nil when no renderer is
// attached. This is exported for testing purposes only.
func (s *OTelSpan) Batcher() *BatchProcessor {
	return s.batcher
}
