package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/pipeline"
)

// #region client-struct
// Client wraps the gRPC connection to the analytics service.
type Client struct {
	conn   *grpc.ClientConn
	client AnalyticsServiceClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to the analytics gRPC server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewAnalyticsServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc AnalyticsServiceClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
// Recompute triggers a scoring run on the server.
func (c *Client) Recompute(ctx context.Context) (*pipeline.RecomputeResult, error) {
	resp, err := c.client.Recompute(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("recompute rpc: %w", err)
	}
	var out pipeline.RecomputeResult
	if err := fromStruct(resp, &out); err != nil {
		return nil, fmt.Errorf("recompute rpc: %w", err)
	}
	return &out, nil
}

// Report fetches the report, recomputing scores first when asked.
func (c *Client) Report(ctx context.Context, recompute bool) (*ReportResponse, error) {
	req, err := structpb.NewStruct(map[string]any{"recompute": recompute})
	if err != nil {
		return nil, fmt.Errorf("report rpc: %w", err)
	}
	resp, err := c.client.Report(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("report rpc: %w", err)
	}
	var out ReportResponse
	if err := fromStruct(resp, &out); err != nil {
		return nil, fmt.Errorf("report rpc: %w", err)
	}
	return &out, nil
}

// #endregion calls
