// Package worker holds the event consumers. StatusCache keeps the Redis
// order-status cache warm from the lifecycle topics so reads rarely touch
// Postgres.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/shopd/go-shop-orders/internal/kafka"
	"github.com/shopd/go-shop-orders/internal/orders"
	"github.com/shopd/go-shop-orders/internal/redisx"
)

type StatusCache struct {
	Redis       *redis.Client
	Log         *zap.Logger
	ServiceName string
}

func (s *StatusCache) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup on event id; redelivery is expected with manual commits
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cache(ctx, p.OrderID, orders.StatusPending, env); err != nil {
			return err
		}
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cache(ctx, p.OrderID, p.To, env); err != nil {
			return err
		}
	default:
		return nil
	}

	// only mark the event seen once the cache write stuck, otherwise a
	// redelivery after a failure would be skipped
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (s *StatusCache) cache(ctx context.Context, orderID int64, status orders.Status, env orders.Envelope) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": status, "updated_at": env.OccurredAt})
	if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	s.Log.Debug("status cache refreshed",
		zap.Int64("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("event_id", env.EventID))
	return nil
}
