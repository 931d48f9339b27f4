package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oip/dpreport/internal/app/bootstrap"
	"oip/dpreport/internal/domains"
	"oip/dpreport/internal/worker"
	"oip/dpreport/pkg/config"
	"oip/dpreport/pkg/metrics"
)

var (
	configPath = flag.String("config", "./config/worker.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  DPREPORT Worker Starting...")
	log.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, broker: %s, queue: %s\n", cfg.App.Name, cfg.App.Env, cfg.Broker.Type, cfg.Queue.Name)

	// 2. 初始化 Logger
	zapLogger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// 3. 初始化队列客户端和业务依赖
	transport, err := bootstrap.NewTransport(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create %s client: %v", cfg.Broker.Type, err)
	}

	deps, err := bootstrap.NewDependencies(ctx, cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	// 4. 指标
	consumerMetrics := metrics.NewConsumerMetrics(cfg.Metrics.Namespace, nil)
	metricsServer := startMetricsServer(cfg.Metrics.Addr)

	// 5. 创建 Manager
	var dedup domains.Deduplicator
	if deps.Dedup != nil {
		dedup = deps.Dedup
	}
	handler := domains.GetProcess(zapLogger, deps.MetricService, dedup)

	mgr, err := worker.NewManagerInstance(cfg.Queue.ToFramework(), transport, handler, zapLogger, consumerMetrics)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 6. 启动 Manager（立即返回）
	if err := mgr.Start(ctx); err != nil {
		log.Fatalf("Manager start failed: %v", err)
	}

	log.Println("Worker started. Press Ctrl+C to shutdown.")

	// 7. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Println("========================================")
		log.Printf("  Received signal: %v\n", sig)
		log.Println("  Shutting down Worker...")
		log.Println("========================================")
	case <-mgr.Done():
		log.Println("All workers exited unexpectedly, shutting down...")
	}

	// 8. 优雅关闭 Manager（等待在途消息处理完成）
	mgr.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	fmt.Println("========================================")
	fmt.Println("  Worker exited gracefully")
	fmt.Println("========================================")
}

// startMetricsServer 在 addr 上暴露 /metrics，addr 为空时不启动
func startMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("Metrics server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return server
}
