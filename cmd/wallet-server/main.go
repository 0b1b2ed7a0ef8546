package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"wallet-psbt/internal/credential"
	"wallet-psbt/internal/handler"
	"wallet-psbt/internal/noderpc"
	"wallet-psbt/internal/server"
	"wallet-psbt/internal/service"
	"wallet-psbt/internal/service/mq"
	"wallet-psbt/internal/store"
	"wallet-psbt/pkg/config"
	"wallet-psbt/pkg/logger"
	"wallet-psbt/pkg/monitor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 节点凭证
	creds, err := loadNodeCredentials(cfg)
	if err != nil {
		logger.Fatal("加载节点凭证失败", zap.Error(err))
	}

	// 3. 监控指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := monitor.NewHTTPMetrics(reg)
	business := monitor.NewBusinessMetrics(reg)

	// 4. 节点 RPC 客户端
	node := noderpc.New(noderpc.Config{
		Host:     cfg.Node.Host,
		Port:     cfg.Node.Port,
		User:     creds.Username,
		Password: creds.Password,
		Wallet:   cfg.Node.Wallet,
		Timeout:  cfg.Node.CallTimeout,
	}, noderpc.WithLogger(logger.Named("noderpc")), noderpc.WithObserver(business.ObserveRPC))
	logger.Info("节点 RPC 客户端就绪",
		zap.String("endpoint", node.Endpoint()),
		zap.String("network", cfg.Node.Network))

	params, err := service.ChainParams(cfg.Node.Network)
	if err != nil {
		logger.Fatal("网络配置错误", zap.Error(err))
	}

	// 5. 生命周期事件
	producer, err := mq.NewProducer(ctx, cfg, logger.Named("mq"))
	if err != nil {
		logger.Fatal("消息队列初始化失败", zap.Error(err))
	}
	defer func() { _ = producer.Close() }()

	// 6. 交易流水线
	pipeline := service.NewPipeline(node, store.New(), params,
		service.WithProducer(producer, cfg.MQ.Topic),
		service.WithMetrics(business),
		service.WithCallTimeout(cfg.Node.CallTimeout),
		service.WithLogger(logger.Log),
	)

	// 7. 节点健康检查
	hs := health.NewServer()
	watcher := service.NewHealthWatcher(pipeline, hs, cfg.Node.HealthInterval, logger.Log)
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("节点健康检查启动失败", zap.Error(err))
	}
	defer watcher.Stop()

	// 8. HTTP + gRPC
	r := server.NewHTTPRouter(server.RouterDeps{
		Psbt:     handler.NewPsbtHandler(pipeline),
		Node:     handler.NewNodeHandler(pipeline, watcher),
		Metrics:  httpMetrics,
		Gatherer: reg,
	})

	app, err := server.New(server.Config{
		HttpPort: cfg.App.HttpPort,
		GrpcPort: cfg.App.GrpcPort,
	}, r, server.NewGRPCServer(hs), logger.Log)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	// 运行 (阻塞)
	if err := app.Run(ctx); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}
	logger.Info("系统已退出")
}

// loadNodeCredentials 优先读取加密凭证文件，不存在时回退到 node.user / node.password
func loadNodeCredentials(cfg config.Config) (credential.Credentials, error) {
	fallback := credential.Credentials{Username: cfg.Node.User, Password: cfg.Node.Password}
	if cfg.Credentials.Path == "" || cfg.Credentials.Passphrase == "" {
		logger.Warn("未配置凭证文件或口令，使用 node.user / node.password")
		return fallback, nil
	}

	fs := credential.NewFileStore(cfg.Credentials.Path, cfg.Credentials.Passphrase)
	creds, err := fs.Load()
	if errors.Is(err, credential.ErrNotFound) {
		logger.Warn("凭证文件不存在，使用 node.user / node.password", zap.String("path", fs.Path()))
		return fallback, nil
	}
	if err != nil {
		return credential.Credentials{}, err
	}
	logger.Info("已加载加密凭证", zap.String("path", fs.Path()), zap.Stringer("credentials", creds))
	return creds, nil
}
