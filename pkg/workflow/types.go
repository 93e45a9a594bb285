package workflow

// BatchStatus defines the processing states a batch moves through during a run.
type BatchStatus string

// Constants representing the defined batch statuses.
const (
	BatchPending     BatchStatus = "pending"
	BatchMoving      BatchStatus = "moving"
	BatchProcessing  BatchStatus = "processing"
	BatchSucceeded   BatchStatus = "succeeded"
	BatchQuarantined BatchStatus = "quarantined"
)

// IsFinal reports whether the status is a terminal state for a batch.
func (s BatchStatus) IsFinal() bool {
	return s == BatchSucceeded || s == BatchQuarantined
}
