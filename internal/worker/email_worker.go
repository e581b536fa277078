package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/contacts-api/internal/events"
	"github.com/spec-kit/contacts-api/internal/mailer"
)

// EmailWorker drains confirmation events into the mailer.
type EmailWorker struct {
	queue  *events.Queue
	mailer mailer.Mailer
	logger *zap.Logger
}

// NewEmailWorker creates a worker for queue.
func NewEmailWorker(queue *events.Queue, m mailer.Mailer, logger *zap.Logger) *EmailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailWorker{queue: queue, mailer: m, logger: logger}
}

// Run processes events until ctx is cancelled or the queue is closed.
func (w *EmailWorker) Run(ctx context.Context) {
	w.logger.Info("email worker started")
	defer w.logger.Info("email worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.queue.Events():
			if !ok {
				return
			}
			w.handle(ctx, event)
		}
	}
}

func (w *EmailWorker) handle(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.EventConfirmationRequested:
		if err := w.mailer.SendConfirmation(ctx, event.Confirmation); err != nil {
			w.logger.Error("confirmation email not delivered",
				zap.String("event_id", event.ID),
				zap.String("email", event.Confirmation.Email),
				zap.Error(err),
			)
			return
		}
		w.logger.Debug("confirmation email sent", zap.String("event_id", event.ID))
	default:
		w.logger.Warn("unknown event type", zap.String("type", string(event.Type)))
	}
}
