package amqp

import (
	"context"
	"log/slog"

	"moneywise/internal/core"
	"moneywise/internal/log"
)

// EventPublisher is the slice of Client the ledger notifier needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e core.LedgerEvent) error
}

// Notifier forwards committed ledger events to the broker. Failures are
// logged and swallowed: the mutation already committed.
type Notifier struct {
	pub EventPublisher
}

func NewNotifier(pub EventPublisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) Notify(ctx context.Context, e core.LedgerEvent) {
	// The request context may be cancelled as soon as the response is written.
	ctx = context.WithoutCancel(ctx)
	if err := n.pub.PublishEvent(ctx, e); err != nil {
		slog.WarnContext(ctx, "Ledger event not published",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldOperation, log.OpPublish,
			log.FieldEventID, e.ID,
			log.FieldEventType, string(e.Type),
			log.FieldError, err)
	}
}
