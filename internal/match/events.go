// internal/match/events.go
package match

import (
	"context"
	"time"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// Event types of the match stream.
const (
	EventMatchCreated   = "match_created"
	EventRoundEnd       = "round_end"
	EventMatchFinalized = "match_finalized"
	EventMatchCanceled  = "match_canceled"
	EventSetupFailed    = "setup_failed"
)

// publish sends an event; failures are logged only.
func (lc *Lifecycle) publish(ctx context.Context, ev models.MatchEvent) {
	if lc.publisher == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if err := lc.publisher.Publish(ctx, ev); err != nil {
		lc.logger.WithError(err).WithField("event_type", ev.Type).Warn("failed to publish match event")
	}
}

func matchEvent(m models.Match, typ string, payload map[string]interface{}) models.MatchEvent {
	return models.MatchEvent{
		MatchID: m.ID,
		LobbyID: m.LobbyID.String(),
		Type:    typ,
		Payload: payload,
	}
}
