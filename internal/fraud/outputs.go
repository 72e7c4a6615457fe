package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOutputNotFound is returned when no model output exists for a
// transaction reference.
var ErrOutputNotFound = errors.New("Not found")

const (
	outputKeyPrefix    = "fraud:output:"
	outputUserIndexKey = "fraud:outputs:user:"
)

// ModelOutput is the append-only document persisted for every scored
// transaction, keyed by the "TXN-<id>" reference. Features holds the raw
// snapshot sent to the scorer for later audit and feature-store reuse.
type ModelOutput struct {
	TransactionID  string      `json:"transactionId"`
	UserID         string      `json:"userId"`
	FraudScore     float64     `json:"fraudScore"`
	Label          int         `json:"label"`
	ModelName      string      `json:"modelName"`
	ModelVersion   string      `json:"modelVersion"`
	AnomalyReasons []string    `json:"anomalyReasons"`
	Features       interface{} `json:"features"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// OutputStore is the document store for model outputs: one JSON value per
// transaction plus a per-user index ordered by creation time, so the latest
// outputs for a user can be listed without scanning.
type OutputStore struct {
	Rdb *redis.Client
}

// Put writes one output document and indexes it under the owning user.
// Documents are never mutated after creation.
func (s *OutputStore) Put(ctx context.Context, out *ModelOutput) error {
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	pipe := s.Rdb.TxPipeline()
	pipe.Set(ctx, outputKeyPrefix+out.TransactionID, b, 0)
	pipe.ZAdd(ctx, outputUserIndexKey+out.UserID, redis.Z{
		Score:  float64(out.CreatedAt.UnixMilli()),
		Member: out.TransactionID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Get fetches the output for one transaction reference, scoped to a user.
func (s *OutputStore) Get(ctx context.Context, transactionID, userID string) (*ModelOutput, error) {
	b, err := s.Rdb.Get(ctx, outputKeyPrefix+transactionID).Bytes()
	if err == redis.Nil {
		return nil, ErrOutputNotFound
	}
	if err != nil {
		return nil, err
	}
	var out ModelOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out.UserID != userID {
		return nil, ErrOutputNotFound
	}
	return &out, nil
}

// ListByUser returns up to limit outputs for a user, newest first.
func (s *OutputStore) ListByUser(ctx context.Context, userID string, limit int) ([]ModelOutput, error) {
	ids, err := s.Rdb.ZRevRange(ctx, outputUserIndexKey+userID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	outs := make([]ModelOutput, 0, len(ids))
	for _, id := range ids {
		b, err := s.Rdb.Get(ctx, outputKeyPrefix+id).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var out ModelOutput
		if err := json.Unmarshal(b, &out); err != nil {
			continue
		}
		outs = append(outs, out)
	}
	return outs, nil
}
