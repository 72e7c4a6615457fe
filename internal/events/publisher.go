// Package events publishes realtime domain events to Redis pub/sub. The
// socket gateway subscribes to the per-user channels and fans messages out to
// connected clients; this service only guarantees the events are carried.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event names carried on the channel.
const (
	TypePortfolioNew   = "portfolio:new"
	TypeHoldingUpdated = "holding:updated"
	TypeTransactionNew = "transaction:new"
	TypeFraudAlert     = "fraud:alert"
)

const channelPrefix = "events:user:"

// Envelope is the JSON message published for every event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

// Publisher publishes events on a user-scoped Redis channel. A publish
// failure is logged and dropped: realtime push is best-effort and never
// blocks the write path.
type Publisher struct {
	Rdb *redis.Client
}

// Publish sends one event to the user's channel. Safe on a nil receiver so
// callers need no wiring in tests.
func (p *Publisher) Publish(ctx context.Context, userID string, event string, data interface{}) {
	if p == nil || p.Rdb == nil {
		return
	}
	b, err := json.Marshal(Envelope{Event: event, Data: data, At: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("event marshal failed")
		return
	}
	if err := p.Rdb.Publish(ctx, channelPrefix+userID, b).Err(); err != nil {
		log.Warn().Err(err).Str("event", event).Str("user_id", userID).Msg("event publish failed")
	}
}

// Channel returns the pub/sub channel name for a user (used by the gateway).
func Channel(userID string) string {
	return channelPrefix + userID
}
