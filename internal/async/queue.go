package async

import (
	"context"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// Invoker is the per-image unit of work the scheduler fans out.
type Invoker interface {
	Invoke(ctx context.Context, task entity.ImageTask) entity.Outcome
}

// Observer receives progress events. Finished may be called from several
// goroutines at once; implementations guard their own state.
type Observer interface {
	Started(task entity.ImageTask)
	Finished(outcome entity.Outcome, done, total int)
}

// Observers fans events out to every member.
type Observers []Observer

func (obs Observers) Started(task entity.ImageTask) {
	for _, o := range obs {
		o.Started(task)
	}
}

func (obs Observers) Finished(outcome entity.Outcome, done, total int) {
	for _, o := range obs {
		o.Finished(outcome, done, total)
	}
}
