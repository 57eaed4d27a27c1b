package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/analytics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/pipeline"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/regression"
)

// #region fakes
type fakeRunner struct {
	result *pipeline.RecomputeResult
	report *analytics.Report
	err    error

	refreshed bool
}

func (f *fakeRunner) Recompute(context.Context) (*pipeline.RecomputeResult, error) {
	return f.result, f.err
}

func (f *fakeRunner) Report(context.Context) (*analytics.Report, error) {
	return f.report, f.err
}

func (f *fakeRunner) Refresh(context.Context) (*pipeline.RecomputeResult, *analytics.Report, error) {
	f.refreshed = true
	return f.result, f.report, f.err
}

type mockService struct {
	AnalyticsServiceClient
	err error
}

func (m *mockService) Recompute(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error) {
	return nil, m.err
}

func sampleReport() *analytics.Report {
	mean := 3.1
	p := 0.02
	return &analytics.Report{
		GeneratedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		N:           3,
		Conditions:  []records.Mode{"control", "assist"},
		Reference:   "control",
		Alpha:       0.05,
		Descriptives: []analytics.Descriptive{
			{Metric: "vq_early", Condition: "control", N: 2, Mean: &mean},
		},
		Models: []analytics.Model{{
			Name: "H1a_vq_late", Outcome: "vq_late", Testable: true, Status: analytics.StatusOK,
			Fit: &regression.Fit{
				Coefficients: []regression.Coefficient{{Name: "cond_assist", Estimate: 0.5, P: p}},
				N:            3,
			},
		}},
		Mediation: &analytics.Mediation{
			Mediator: "short_circuit", Outcome: "vq_late", Status: analytics.StatusOK,
			Effects: []regression.IndirectEffect{{Treatment: "cond_assist", Estimate: -0.4, Seed: 1<<63 + 12345}},
		},
	}
}

// #endregion fakes

// #region helpers
// startServer serves runner on an in-memory listener and returns a client.
func startServer(t *testing.T, runner Runner) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewServer(runner, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// #endregion helpers

// #region rpc-tests
func TestRecompute_RoundTrip(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.RecomputeResult{
		RunID: "run-1", AlgorithmVersion: "rs-1.2.0", Participants: 40, Changed: 3,
		Skipped:  []records.Violation{{ParticipantID: "p9", Reason: `unknown mode "x"`}},
		Duration: 1500 * time.Millisecond,
	}}
	client := startServer(t, runner)

	got, err := client.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runner.result, got)
}

func TestReport_RoundTrip(t *testing.T) {
	runner := &fakeRunner{report: sampleReport()}
	client := startServer(t, runner)

	resp, err := client.Report(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, runner.refreshed)
	assert.Nil(t, resp.Recompute)
	require.NotNil(t, resp.Report)

	want := sampleReport()
	assert.True(t, want.GeneratedAt.Equal(resp.Report.GeneratedAt))
	assert.Equal(t, want.Conditions, resp.Report.Conditions)
	assert.Equal(t, want.Descriptives, resp.Report.Descriptives)
	m, ok := resp.Report.Model("H1a_vq_late")
	require.True(t, ok)
	c, ok := m.Fit.Coefficient("cond_assist")
	require.True(t, ok)
	assert.Equal(t, 0.5, c.Estimate)
	require.NotNil(t, resp.Report.Mediation)
	assert.Equal(t, uint64(1<<63+12345), resp.Report.Mediation.Effects[0].Seed, "seed keeps all 64 bits")
}

func TestReport_WithRecompute(t *testing.T) {
	runner := &fakeRunner{
		result: &pipeline.RecomputeResult{RunID: "run-2", Participants: 3},
		report: sampleReport(),
	}
	client := startServer(t, runner)

	resp, err := client.Report(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, runner.refreshed)
	require.NotNil(t, resp.Recompute)
	assert.Equal(t, "run-2", resp.Recompute.RunID)
	assert.Equal(t, 3, resp.Report.N)
}

func TestErrors_MapToStatusCodes(t *testing.T) {
	client := startServer(t, &fakeRunner{err: errors.New("open db: disk full")})
	_, err := client.Recompute(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(errors.Unwrap(err)))
	assert.Contains(t, err.Error(), "disk full")

	client = startServer(t, &fakeRunner{err: context.Canceled})
	_, err = client.Report(context.Background(), false)
	assert.Equal(t, codes.Canceled, status.Code(errors.Unwrap(err)))
}

// #endregion rpc-tests

// #region client-tests
func TestNewClient_LazyConnect(t *testing.T) {
	client, err := NewClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewClientWithService(t *testing.T) {
	c := NewClientWithService(&mockService{err: status.Error(codes.Unavailable, "down")})
	if c == nil || c.client == nil {
		t.Fatal("expected non-nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
	if _, err := c.Recompute(context.Background()); err == nil {
		t.Fatal("expected error from service")
	}
}

func TestFromStruct_NilLeavesValue(t *testing.T) {
	req := ReportRequest{Recompute: true}
	if err := fromStruct(nil, &req); err != nil {
		t.Fatalf("fromStruct: %v", err)
	}
	if !req.Recompute {
		t.Fatal("nil struct must not reset the value")
	}
}

// #endregion client-tests
