package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"oip/dpreport/internal/app/bootstrap"
	"oip/dpreport/internal/business"
	"oip/dpreport/internal/domains"
	"oip/dpreport/internal/framework"
	"oip/dpreport/pkg/config"
	"oip/dpreport/pkg/logger"
)

var (
	configPath   = flag.String("config", "./config/worker.yaml", "配置文件路径")
	testcasePath = flag.String("testcase", "./tools/fasttest/testcase/metrics.json", "测试用例路径")
	skipDB       = flag.Bool("skip-db", false, "跳过数据库操作（使用内存仓储）")
	publish      = flag.Bool("publish", false, "把测试用例发布到队列，而不是在本地处理")
)

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  FastTest - DPREPORT Worker 快速测试工具")
	fmt.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config loaded: %s\n", cfg.App.Name)

	// 2. 加载测试用例
	bodies, err := loadTestCases(*testcasePath)
	if err != nil {
		fmt.Printf("❌ Failed to load test cases: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Loaded %d test cases from %s\n", len(bodies), *testcasePath)

	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("❌ Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	if *publish {
		os.Exit(publishTestCases(ctx, cfg, bodies))
	}

	// 3. 初始化依赖（根据 skip-db 参数决定）
	var svc domains.MetricSaver
	if *skipDB {
		fmt.Println("⚠️  Skip-DB mode: Database and Redis operations disabled")
		svc = business.NewMetricService(newMemoryRepo(), nil, zapLogger, cfg.Report.AllowedMetrics)
	} else {
		deps, err := bootstrap.NewDependencies(ctx, cfg, zapLogger)
		if err != nil {
			fmt.Printf("❌ Failed to initialize dependencies: %v\n", err)
			os.Exit(1)
		}
		defer deps.Close()
		svc = deps.MetricService
		fmt.Println("✅ Database and Redis initialized")
	}

	handler := domains.GetProcess(zapLogger, svc, nil)

	// 4. 执行测试用例
	fmt.Println("\n========================================")
	fmt.Println("  Running Test Cases")
	fmt.Println("========================================")

	successCount := 0
	failureCount := 0

	for i, body := range bodies {
		fmt.Printf("\n[Test %d/%d] %s\n", i+1, len(bodies), body)
		fmt.Println("----------------------------------------")

		startTime := time.Now()
		msg := &framework.Message{
			ID:   fmt.Sprintf("fasttest-%d-%d", startTime.UnixNano(), i),
			Body: body,
		}
		err := handler(ctx, msg)
		duration := time.Since(startTime)

		if err != nil {
			fmt.Printf("❌ FAILED: %v\n", err)
			failureCount++
		} else {
			fmt.Printf("✅ PASSED\n")
			successCount++
		}
		fmt.Printf("⏱️  Duration: %v\n", duration)
	}

	// 5. 输出测试汇总
	fmt.Println("\n========================================")
	fmt.Println("  Test Summary")
	fmt.Println("========================================")
	fmt.Printf("Total: %d\n", len(bodies))
	fmt.Printf("Passed: %d ✅\n", successCount)
	fmt.Printf("Failed: %d ❌\n", failureCount)

	if failureCount > 0 {
		os.Exit(1)
	}
}

// publishTestCases 把测试用例发布到配置的队列
func publishTestCases(ctx context.Context, cfg *config.Config, bodies []string) int {
	transport, err := bootstrap.NewTransport(ctx, cfg)
	if err != nil {
		fmt.Printf("❌ Failed to create %s client: %v\n", cfg.Broker.Type, err)
		return 1
	}

	failed := 0
	for i, body := range bodies {
		id, err := transport.Publish(ctx, cfg.Queue.Name, body)
		if err != nil {
			fmt.Printf("❌ [%d] publish failed: %v\n", i+1, err)
			failed++
			continue
		}
		fmt.Printf("✅ [%d] published id=%s\n", i+1, id)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// loadTestCases 从 JSON 数组加载测试用例，每个元素原样作为消息体
func loadTestCases(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read testcase file: %w", err)
	}

	var raw []jsoniter.RawMessage
	if err := jsoniter.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal testcase: %w", err)
	}

	bodies := make([]string, 0, len(raw))
	for _, r := range raw {
		bodies = append(bodies, string(r))
	}
	return bodies, nil
}

// memoryRepo 内存仓储（skip-db 模式）
type memoryRepo struct {
	mu     sync.Mutex
	values map[string]decimal.Decimal
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{values: map[string]decimal.Decimal{}}
}

func (r *memoryRepo) AddToMetric(ctx context.Context, name string, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = r.values[name].Add(delta)
	return r.values[name], nil
}

func (r *memoryRepo) GetMetric(ctx context.Context, name string) (*business.Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	if !ok {
		return nil, nil
	}
	return &business.Metric{Name: name, Value: v}, nil
}
