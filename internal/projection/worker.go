package projection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/port/eventbus"
)

// Worker binds the projector to the durable event queues. Each queue
// gets its own durable consumer, so the broker interleaves the streams
// fairly while preserving per-queue publish order.
type Worker struct {
	sub       eventbus.Subscriber
	projector *Projector
	cfg       config.Projection
}

// NewWorker creates a projection worker.
func NewWorker(sub eventbus.Subscriber, projector *Projector, cfg config.Projection) *Worker {
	return &Worker{sub: sub, projector: projector, cfg: cfg}
}

// Run subscribes all queues and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	bindings := []struct {
		subject string
		queue   string
	}{
		{eventbus.SubjectTenantEvents, w.cfg.TenantQueue},
		{eventbus.SubjectUserEvents, w.cfg.UserQueue},
		{eventbus.SubjectPirepEvents, w.cfg.PirepQueue},
	}

	var cancels []func()
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	for _, b := range bindings {
		cancel, err := w.sub.Subscribe(ctx, b.subject, b.queue, w.projector.Apply)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", b.subject, err)
		}
		cancels = append(cancels, cancel)
		slog.Info("projection queue bound", "subject", b.subject, "queue", b.queue)
	}

	<-ctx.Done()
	slog.Info("projection worker stopping")
	return nil
}
