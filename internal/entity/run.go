package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run is one batch invocation as recorded in the ledger.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	ToolPath   string
	InputDir   string
	Total      int
	Failed     int
}
