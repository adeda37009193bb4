package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/kennethnrk/fasttext-services/internal/service"
)

// Client calls a remote PredictionAPI.
type Client struct {
	conn *grpc.ClientConn
	api  PredictionAPIClient
}

// Dial connects to addr without transport security. Extra options are
// applied after the defaults.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, api: NewPredictionAPIClient(conn)}, nil
}

// Process runs the named remote service over inputs.
func (c *Client) Process(ctx context.Context, name string, inputs service.Inputs) (service.Outputs, error) {
	req, err := newProcessRequest(name, inputs)
	if err != nil {
		return nil, err
	}
	reply, err := c.api.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseProcessReply(reply)
}

// Status fetches the state of every remote service.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	reply, err := c.api.Status(ctx, &emptypb.Empty{})
	if err != nil {
		return StatusReport{}, err
	}
	return decodeStatus(reply)
}

func (c *Client) Close() error { return c.conn.Close() }
