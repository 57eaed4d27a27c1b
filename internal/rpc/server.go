package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/pipeline"
)

// #region types
// Runner is the pipeline surface the server drives.
type Runner interface {
	Recompute(ctx context.Context) (*pipeline.RecomputeResult, error)
	Report(ctx context.Context) (*analytics.Report, error)
	Refresh(ctx context.Context) (*pipeline.RecomputeResult, *analytics.Report, error)
}

// ReportRequest asks for the report, optionally recomputing scores first.
type ReportRequest struct {
	Recompute bool `json:"recompute"`
}

// ReportResponse carries the report and, when requested, the recompute run
// that preceded it.
type ReportResponse struct {
	Recompute *pipeline.RecomputeResult `json:"recompute,omitempty"`
	Report    *analytics.Report         `json:"report"`
}

// #endregion types

// #region server
// Server implements AnalyticsServer over a Runner.
type Server struct {
	runner Runner
	logger *zap.Logger
}

// NewServer creates a Server. logger may be nil.
func NewServer(runner Runner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, logger: logger}
}

// Recompute scores the stored population and returns the run summary.
func (s *Server) Recompute(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.runner.Recompute(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

// Report builds the report. {"recompute": true} refreshes scores first.
func (s *Server) Report(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ReportRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "report request: %v", err)
	}

	var resp ReportResponse
	var err error
	if req.Recompute {
		resp.Recompute, resp.Report, err = s.runner.Refresh(ctx)
	} else {
		resp.Report, err = s.runner.Report(ctx)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

// toStatus maps context errors to their gRPC codes and everything else to
// Internal.
func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// UnaryLogger logs every unary call with its duration and status code.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

// #endregion server

// #region conversion
// toStruct converts a JSON-tagged value to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value. A nil Struct
// leaves v unchanged.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

// #endregion conversion
