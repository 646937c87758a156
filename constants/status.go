package constants

// OutcomeStatus describes how a single OCR invocation ended.
type OutcomeStatus string

// Stable values (stored as-is in the run ledger and the XLSX report).
const (
	StatusOK             OutcomeStatus = "OK"              // tool exited 0 with a non-zero confidence
	StatusZeroConfidence OutcomeStatus = "ZERO_CONFIDENCE" // tool exited 0 but confidence is 0
	StatusTimeout        OutcomeStatus = "TIMEOUT"         // killed after the per-image timeout
	StatusExecFailed     OutcomeStatus = "EXEC_FAILED"     // non-zero exit status
	StatusError          OutcomeStatus = "ERROR"           // anything else (tool vanished, bad output)
)
