package entity

import (
	"time"

	"github.com/joseph-ayodele/batch-ocr/constants"
)

// Outcome is the result of running the OCR tool against a single ImageTask.
type Outcome struct {
	ID         string                  `json:"id"`
	Path       string                  `json:"path"`
	Text       string                  `json:"text"`
	Confidence float64                 `json:"confidence"`
	Failed     bool                    `json:"failed"`
	Status     constants.OutcomeStatus `json:"status"`
	Err        string                  `json:"error,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// IsFailure is the only quarantine criterion: a confidence of exactly zero.
func IsFailure(confidence float64) bool {
	return confidence == 0.0
}
