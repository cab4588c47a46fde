// internal/handlers/callbacks.go
package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/metrics"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

// Callback kinds, used as metric labels.
const (
	CallbackRoundEnd = "round_end"
	CallbackMatchEnd = "match_end"
)

// Callback results, used as metric labels.
const (
	resultOK           = "ok"
	resultUnauthorized = "unauthorized"
	resultMalformed    = "malformed"
	resultMismatch     = "mismatch"
	resultFailed       = "failed"
	resultPanic        = "panic"
)

// CallbackReceiver is the part of the match lifecycle the provider webhooks
// drive.
type CallbackReceiver interface {
	Authenticate(ctx context.Context, apiKey string) (models.Match, error)
	HandleRoundEnd(ctx context.Context, m models.Match, snap provider.Match) error
	HandleMatchEnd(ctx context.Context, m models.Match, payload provider.Match) error
}

// RoundEndHandler receives the provider's round-end webhook.
func RoundEndHandler(logger *logrus.Logger, rec CallbackReceiver, m metrics.Recorder) http.HandlerFunc {
	return callbackHandler(logger, m, CallbackRoundEnd, rec.Authenticate, rec.HandleRoundEnd)
}

// MatchEndHandler receives the provider's match-end webhook.
func MatchEndHandler(logger *logrus.Logger, rec CallbackReceiver, m metrics.Recorder) http.HandlerFunc {
	return callbackHandler(logger, m, CallbackMatchEnd, rec.Authenticate, rec.HandleMatchEnd)
}

// callbackHandler acknowledges every delivery with 200. Payloads with an
// unknown token, a bad body, or another match's id are dropped.
func callbackHandler(
	logger *logrus.Logger,
	rec metrics.Recorder,
	kind string,
	authenticate func(context.Context, string) (models.Match, error),
	handle func(context.Context, models.Match, provider.Match) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithFields(logrus.Fields{"callback": kind, "remote": r.RemoteAddr})
		result := resultOK
		defer func() {
			if p := recover(); p != nil {
				log.WithField("panic", p).Error("callback handler panicked")
				result = resultPanic
			}
			rec.CallbackReceived(kind, result)
			w.WriteHeader(http.StatusOK)
		}()

		// The provider does not wait for teardown; keep going after it hangs up.
		ctx := context.WithoutCancel(r.Context())

		m, err := authenticate(ctx, bearerToken(r))
		if err != nil {
			log.WithError(err).Debug("dropping callback with unknown token")
			result = resultUnauthorized
			return
		}
		log = log.WithField("match_id", m.ID)

		var payload provider.Match
		if err := decodeJSON(w, r, &payload); err != nil {
			log.WithError(err).Warn("dropping malformed callback payload")
			result = resultMalformed
			return
		}
		if payload.ID != "" && payload.ID != m.ID {
			log.WithField("payload_match_id", payload.ID).Warn("dropping callback for another match")
			result = resultMismatch
			return
		}

		if err := handle(ctx, m, payload); err != nil {
			log.WithError(err).Error("failed to handle callback")
			result = resultFailed
		}
	}
}
