package workflow

import "time"

// BatchResult records the outcome of one batch's pipeline.
type BatchResult struct {
	Batch    Batch
	Status   BatchStatus
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the batch was fully ingested.
func (r BatchResult) Succeeded() bool {
	return r.Status == BatchSucceeded
}

// RunPlan describes a run after its batches were planned but before any file moved.
type RunPlan struct {
	CorrelationID    string  `json:"correlationId"`
	SourceDirectory  string  `json:"sourceDirectory"`
	ReportsDirectory string  `json:"reportsDirectory"`
	Batches          []Batch `json:"batches"`
}

// FileCount returns the number of files across all planned batches.
func (p RunPlan) FileCount() int {
	n := 0
	for _, b := range p.Batches {
		n += b.Size()
	}
	return n
}

// RunSummary aggregates the outcome of a run. It is passed to Hooks.OnRunComplete and
// rendered by the CLI; Orchestrator.Run itself only returns an error.
type RunSummary struct {
	CorrelationID      string    `json:"correlationId"`
	SourceDirectory    string    `json:"sourceDirectory"`
	ReportsDirectory   string    `json:"reportsDirectory"`
	StartedAt          time.Time `json:"startedAt"`
	DurationSeconds    float64   `json:"durationSeconds"`
	FilesDiscovered    int       `json:"filesDiscovered"`
	BatchCount         int       `json:"batchCount"`
	SucceededCount     int       `json:"succeededCount"`
	QuarantinedCount   int       `json:"quarantinedCount"`
	QuarantineFailures int       `json:"quarantineFailures"`
	ReportPrefix       string    `json:"reportPrefix,omitempty"`
	ReportsGenerated   bool      `json:"reportsGenerated"`
	SystemicError      string    `json:"systemicError,omitempty"`
	// QuarantinedBatches lists the ordinals of batches moved (or attempted) to the failures area.
	QuarantinedBatches []int `json:"quarantinedBatches,omitempty"`
}

// add folds a batch result into the summary counters.
func (s *RunSummary) add(r BatchResult) {
	switch r.Status {
	case BatchSucceeded:
		s.SucceededCount++
	case BatchQuarantined:
		s.QuarantinedCount++
		s.QuarantinedBatches = append(s.QuarantinedBatches, r.Batch.Ordinal)
	}
}
