package main

// @title           DPREPORT API
// @version         1.0
// @description     指标报表查询 API
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	"github.com/gin-gonic/gin"

	"oip/dpreport/internal/app/bootstrap"
	"oip/dpreport/internal/app/server/handlers/report"
	"oip/dpreport/internal/app/server/routers"
	"oip/dpreport/pkg/config"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.ValidateAPIServer(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	zapLogger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// 2. 初始化依赖
	deps, err := bootstrap.NewDependencies(context.Background(), cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	engine := routers.SetupRoutes(routers.Options{
		ReportHandler: report.NewReportHandler(deps.MetricService, zapLogger),
		Logger:        zapLogger,
		JWTSecret:     cfg.Auth.JWTSecret,
		AdminRole:     cfg.Auth.AdminRole,
	})

	// 3. 启动 HTTP Server（后台 goroutine）
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 4. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}
}
