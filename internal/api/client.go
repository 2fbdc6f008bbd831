package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// Status is the session health as seen by a client.
type Status struct {
	Serving healthpb.HealthCheckResponse_ServingStatus `json:"serving"`
	State   string                                     `json:"state,omitempty"`
	Reason  string                                     `json:"reason,omitempty"`
}

// Client wraps the gRPC connection to a daemon.
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
}

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, Health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status checks the session service once.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var md metadata.MD
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: SessionService}, grpc.Header(&md))
	if err != nil {
		return Status{}, err
	}
	return statusFrom(resp.GetStatus(), md), nil
}

// Watch streams session health changes to fn until ctx ends or the
// daemon closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(Status)) error {
	stream, err := c.Health.Watch(ctx, &healthpb.HealthCheckRequest{Service: SessionService})
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		st := Status{Serving: resp.GetStatus()}
		// The stream header is fixed at open, so re-check for the current state.
		if cur, err := c.Status(ctx); err == nil {
			st = cur
			st.Serving = resp.GetStatus()
		}
		fn(st)
	}
}

func statusFrom(serving healthpb.HealthCheckResponse_ServingStatus, md metadata.MD) Status {
	st := Status{Serving: serving}
	if v := md.Get(StateHeader); len(v) > 0 {
		st.State = v[0]
	}
	if v := md.Get(ReasonHeader); len(v) > 0 {
		st.Reason = v[0]
	}
	return st
}
