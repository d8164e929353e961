// internal/events/bus_test.go
package events

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEmbeddedServer(t *testing.T) *nats.Conn {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host: "127.0.0.1",
		Port: -1, // random free port
	})
	require.NoError(t, err)

	go srv.Start()
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS server did not start")
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return nc
}

func TestPublishReachesProductSubscribers(t *testing.T) {
	bus := NewBus(runEmbeddedServer(t))

	received := make(chan ProductUpdate, 1)
	unsubscribe, err := bus.SubscribeProduct("oat-milk", func(u ProductUpdate) {
		received <- u
	})
	require.NoError(t, err)
	defer unsubscribe()

	bus.PublishProductUpdate(ProductUpdate{
		ProductID: "oat-milk",
		AvgSafety: 60,
		AvgTaste:  75,
		VoteCount: 2,
	})

	select {
	case update := <-received:
		assert.Equal(t, "oat-milk", update.ProductID)
		assert.Equal(t, int64(2), update.VoteCount)
		assert.InDelta(t, 60.0, update.AvgSafety, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no product update received")
	}
}

func TestSubscriptionIsScopedToOneProduct(t *testing.T) {
	bus := NewBus(runEmbeddedServer(t))

	received := make(chan ProductUpdate, 1)
	unsubscribe, err := bus.SubscribeProduct("granola", func(u ProductUpdate) {
		received <- u
	})
	require.NoError(t, err)
	defer unsubscribe()

	bus.PublishProductUpdate(ProductUpdate{ProductID: "other-product"})

	select {
	case update := <-received:
		t.Fatalf("received update for wrong product: %s", update.ProductID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	nc := runEmbeddedServer(t)
	bus := NewBus(nc)

	received := make(chan ProductUpdate, 4)
	unsubscribe, err := bus.SubscribeProduct("tofu", func(u ProductUpdate) {
		received <- u
	})
	require.NoError(t, err)

	unsubscribe()
	require.NoError(t, nc.Flush())

	bus.PublishProductUpdate(ProductUpdate{ProductID: "tofu"})

	select {
	case <-received:
		t.Fatal("update delivered after unsubscribe")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNilBusIsNoOp(t *testing.T) {
	var bus *Bus

	// Publishing must be safe with no connection at all.
	bus.PublishProductUpdate(ProductUpdate{ProductID: "anything"})

	_, err := bus.SubscribeProduct("anything", func(ProductUpdate) {})
	assert.Error(t, err)
}
