package loadtest

// Progress is a live snapshot of a running execution. It is transient and never persisted
type Progress struct {
	Total     int64
	Succeeded int64
	Failed    int64
	ElapsedMs float64
	// Windows is the number of completed batches. It stays 0 under token bucket pacing
	Windows int64
}

// ProgressFunc receives progress snapshots while a run executes
type ProgressFunc func(Progress)
