package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	HttpPort string
	GrpcPort string
}

type App struct {
	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener
	log          *zap.Logger
}

// New 监听端口并组装 App；端口为 "0" 时由系统分配
func New(cfg Config, httpHandler http.Handler, grpcServer *grpc.Server, log *zap.Logger) (*App, error) {
	httpLis, err := net.Listen("tcp", ":"+cfg.HttpPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on http port %s: %w", cfg.HttpPort, err)
	}

	// gRPC Listener
	grpcLis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
	if err != nil {
		_ = httpLis.Close()
		return nil, fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GrpcPort, err)
	}

	return &App{
		httpServer: &http.Server{
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		httpListener: httpLis,
		grpcServer:   grpcServer,
		grpcListener: grpcLis,
		log:          log,
	}, nil
}

func (a *App) HTTPAddr() string { return a.httpListener.Addr().String() }
func (a *App) GRPCAddr() string { return a.grpcListener.Addr().String() }

// Run 启动服务并阻塞，直到 ctx 取消或任一服务失败，然后优雅关闭
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// 1. Start HTTP
	g.Go(func() error {
		a.log.Info("Starting HTTP Server", zap.String("addr", a.HTTPAddr()))
		if err := a.httpServer.Serve(a.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 2. Start gRPC
	g.Go(func() error {
		a.log.Info("Starting gRPC Server", zap.String("addr", a.GRPCAddr()))
		if err := a.grpcServer.Serve(a.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// 3. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error("HTTP Server forced to shutdown", zap.Error(err))
		}
		a.grpcServer.GracefulStop()
		return nil
	})

	err := g.Wait()
	a.log.Info("Server exited properly")
	return err
}
