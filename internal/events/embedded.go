// internal/events/embedded.go
package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// StartEmbeddedServer runs an in-process NATS server on the default port.
// Single-binary deployments use it so no external broker is required; the
// caller owns the returned server and must Shutdown it.
func StartEmbeddedServer() (*server.Server, error) {
	srv, err := server.NewServer(&server.Options{
		Host: "127.0.0.1",
		Port: server.DEFAULT_PORT,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure embedded NATS server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded NATS server did not become ready")
	}

	return srv, nil
}
