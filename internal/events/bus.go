// internal/events/bus.go
//
// Package events carries product aggregate updates to live subscribers.
// The vote aggregator publishes after every durable write; clients (or
// other server instances) subscribe per product. The aggregation logic is
// bus-agnostic: a nil *Bus is a no-op publisher.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const productSubjectPrefix = "products.updated."

// ProductUpdate is the payload pushed to subscribers whenever a product's
// aggregates change.
type ProductUpdate struct {
	ProductID           string    `json:"product_id"`
	AvgSafety           float64   `json:"avg_safety"`
	AvgTaste            float64   `json:"avg_taste"`
	AvgPrice            float64   `json:"avg_price"`
	VoteCount           int64     `json:"vote_count"`
	RegisteredVoteCount int64     `json:"registered_vote_count"`
	PriceVoteCount      int64     `json:"price_vote_count"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Bus is a thin NATS wrapper scoped to product update subjects.
type Bus struct {
	nc *nats.Conn
}

// Connect dials the NATS server and returns a Bus.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bus{nc: nc}, nil
}

// NewBus wraps an existing connection. Used by tests with an embedded server.
func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

// PublishProductUpdate pushes an update to everyone watching the product.
// Publishing is best-effort: failures are logged, never returned to the
// voting flow.
func (b *Bus) PublishProductUpdate(update ProductUpdate) {
	if b == nil || b.nc == nil {
		return
	}

	data, err := json.Marshal(update)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal product update")
		return
	}

	if err := b.nc.Publish(productSubjectPrefix+update.ProductID, data); err != nil {
		logrus.WithError(err).WithField("product_id", update.ProductID).
			Warn("Failed to publish product update")
	}
}

// SubscribeProduct registers handler for updates to one product and returns
// an unsubscribe function.
func (b *Bus) SubscribeProduct(productID string, handler func(ProductUpdate)) (func(), error) {
	if b == nil || b.nc == nil {
		return nil, fmt.Errorf("event bus not connected")
	}

	sub, err := b.nc.Subscribe(productSubjectPrefix+productID, func(msg *nats.Msg) {
		var update ProductUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			logrus.WithError(err).Warn("Discarding malformed product update")
			return
		}
		handler(update)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to product updates: %w", err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			logrus.WithError(err).Warn("Failed to unsubscribe from product updates")
		}
	}, nil
}

// Close drains the underlying connection.
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
