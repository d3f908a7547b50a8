// Package eventhandler contains subscribers that react to domain events
// published by the command handlers. Handlers are side-effect glue; the
// commands themselves never know who is listening.
package eventhandler

import (
	"context"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/pkg/logger"
)

// StandingsInvalidator drops cached school standings. Implemented by the
// Redis standings cache; a nil invalidator disables invalidation.
type StandingsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// PointsRecordedHandler reacts to ledger writes. Any recorded transaction
// can move a school in the standings, so the cached table is dropped and
// the next eligibility read rebuilds it from the ledger.
type PointsRecordedHandler struct {
	standings StandingsInvalidator
	log       *logger.Logger
}

// NewPointsRecordedHandler creates a new PointsRecordedHandler.
func NewPointsRecordedHandler(standings StandingsInvalidator, log *logger.Logger) *PointsRecordedHandler {
	return &PointsRecordedHandler{standings: standings, log: log}
}

// Handle implements shared.EventHandler.
func (h *PointsRecordedHandler) Handle(event shared.Event) error {
	payload := event.Payload()

	if h.standings != nil {
		if err := h.standings.Invalidate(context.Background()); err != nil {
			// Stale standings self-heal at TTL expiry, so log and move on.
			h.log.Warn("standings invalidation failed", logger.Err(err))
		}
	}

	h.log.Info("points recorded",
		logger.UserID(event.AggregateID()),
		logger.TxType(asString(payload["tx_type"])),
		logger.Points(asInt64(payload["points"])),
		logger.Balance(asInt64(payload["new_balance"])),
	)
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		// Events that crossed the Redis bus arrive JSON-decoded.
		return int64(n)
	}
	return 0
}
