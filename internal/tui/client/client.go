// Package client connects the TUI to a session daemon.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/matheus3301/twin/internal/rpc"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	*rpc.Client
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{Client: rpc.NewClient(conn), conn: conn}, nil
}

// Reachable reports whether a daemon answers on socketPath within timeout.
func Reachable(socketPath string, timeout time.Duration) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = c.GetStatus(ctx, &rpc.GetStatusRequest{}, grpc.WaitForReady(true))
	return err == nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
