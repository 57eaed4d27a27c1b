package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/metrics"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/rpc"
)

// #region serve
func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics gRPC API and Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

// serve runs until ctx is cancelled, then drains both listeners.
func serve(ctx context.Context, a *app) error {
	st, p, err := a.open()
	if err != nil {
		return err
	}
	defer st.Close()

	lis, err := net.Listen("tcp", a.cfg.RPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.RPCAddr, err)
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(rpc.UnaryLogger(a.logger.Named("rpc"))))
	rpc.Register(srv, rpc.NewServer(p, a.logger))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("grpc listening", zap.String("addr", a.cfg.RPCAddr), zap.String("db", a.cfg.Database))
		return srv.Serve(lis)
	})

	var metricsSrv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.logger.Info("metrics listening", zap.String("addr", a.cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		srv.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})
	return g.Wait()
}

// #endregion serve
