// Package reconcile repairs the divergence left behind by partial writes:
// it consumes the events the coordinator publishes, finishes or unwinds
// the interrupted operation, and archives a report of each repair.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/skilltracker/apiserver/internal/mq"
	"github.com/skilltracker/apiserver/types"
)

// Publisher forwards partial-write events to the reconcile channel.
// Delivery is best-effort: a publish failure is logged, not returned, so
// the partial-write error already on its way to the caller stays the
// single report of the incident.
type Publisher struct {
	mq      *mq.MQ
	channel string
}

// NewPublisher constructs a Publisher for the given channel.
func NewPublisher(m *mq.MQ, channel string) *Publisher {
	return &Publisher{mq: m, channel: channel}
}

// NotifyPartialWrite implements services.ReconcileNotifier.
func (p *Publisher) NotifyPartialWrite(ctx context.Context, event types.ReconcileEvent) {
	attrs := map[string]string{"kind": string(event.Kind), "op": event.Op}
	if _, err := p.mq.PublishJSON(ctx, p.channel, event, attrs); err != nil {
		slog.ErrorContext(ctx, "publish reconcile event failed",
			"kind", string(event.Kind), "user_id", event.UserID, "skill_id", event.SkillID, "error", err)
	}
}
