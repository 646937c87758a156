package async

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// Scheduler runs an Invoker over a batch of tasks with at most `workers`
// invocations in flight.
type Scheduler struct {
	invoker  Invoker
	logger   *slog.Logger
	workers  int
	limiter  *rate.Limiter
	observer Observers
}

type Option func(*Scheduler)

func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLaunchRate caps how many invocations may start per second. Zero disables the cap.
func WithLaunchRate(perSecond float64) Option {
	return func(s *Scheduler) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithObserver(obs ...Observer) Option {
	return func(s *Scheduler) {
		for _, o := range obs {
			if o != nil {
				s.observer = append(s.observer, o)
			}
		}
	}
}

func NewScheduler(inv Invoker, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		invoker: inv,
		logger:  logger,
		workers: 6,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Workers reports the effective concurrency bound.
func (s *Scheduler) Workers() int { return s.workers }

// Stream starts the batch and returns a channel that yields exactly one outcome
// per task, in task order, then closes. Each outcome is produced as soon as
// it and all earlier tasks have finished.
func (s *Scheduler) Stream(ctx context.Context, tasks []entity.ImageTask) <-chan entity.Outcome {
	out := make(chan entity.Outcome, s.workers)
	slots := make([]chan entity.Outcome, len(tasks))
	for i := range slots {
		slots[i] = make(chan entity.Outcome, 1)
	}
	total := len(tasks)
	var done atomic.Int64

	s.logger.Info("batch started", "tasks", total, "workers", s.workers)

	go func() {
		var eg errgroup.Group
		eg.SetLimit(s.workers)
		for i, task := range tasks {
			eg.Go(func() error {
				s.throttle(ctx)
				s.observer.Started(task)
				o := s.invoker.Invoke(ctx, task)
				s.observer.Finished(o, int(done.Add(1)), total)
				slots[i] <- o
				return nil
			})
		}
		_ = eg.Wait()
		s.logger.Debug("all workers drained", "tasks", total)
	}()

	go func() {
		defer close(out)
		for i := range slots {
			out <- <-slots[i]
		}
	}()
	return out
}

// Run is Stream collected into a slice.
func (s *Scheduler) Run(ctx context.Context, tasks []entity.ImageTask) []entity.Outcome {
	outcomes := make([]entity.Outcome, 0, len(tasks))
	for o := range s.Stream(ctx, tasks) {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (s *Scheduler) throttle(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		// launch anyway; the invoker's own timeout still applies
		s.logger.Debug("launch limiter wait aborted", "error", err)
	}
}
