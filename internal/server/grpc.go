package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer 初始化 gRPC 服务: 标准 health 服务 + reflection。
// 节点连通性由 HealthWatcher 写入 hs。
func NewGRPCServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer()

	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s
}
