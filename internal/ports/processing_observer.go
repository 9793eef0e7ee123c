package ports

// ProcessingObserver defines the interface for observing processing results.
// Used to track metrics for all processed signals, not just those that
// produced events.
type ProcessingObserver interface {
	// IncrementSignalsByResult records the result of processing a signal.
	//
	// Parameters:
	//   - result: The classification of the signal ("clean", "detected", "error")
	//
	// Thread Safety: Implementations MUST be safe for concurrent calls.
	IncrementSignalsByResult(result string)
}
