package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"oip/dpreport/internal/framework"
)

// ErrAlreadyStarted 重复调用 Start
var ErrAlreadyStarted = errors.New("manager already started")

// State 生命周期状态
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Manager 接口
type Manager interface {
	Start(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
	State() State
}

// runState 单次运行的可变状态（Start 创建，Stop 释放）
type runState struct {
	cancel context.CancelFunc // 取消所有 Worker 的订阅
	wg     sync.WaitGroup     // 固定大小的 Worker 池
	done   chan struct{}      // 所有 Worker 退出后关闭
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	cfg        framework.QueueConfig
	subscriber *framework.Subscriber
	processor  *framework.Processor
	running    *atomic.Bool
	state      *atomic.Int32
	mu         sync.Mutex
	run        *runState
	logger     framework.Logger
	metrics    framework.MetricsCollector
}

// NewManagerInstance 创建 Manager
func NewManagerInstance(
	cfg framework.QueueConfig,
	source framework.MessageSource,
	handler framework.Handler,
	log framework.Logger,
	metrics framework.MetricsCollector,
) (*ManagerInstance, error) {
	if source == nil {
		return nil, fmt.Errorf("message source is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if metrics == nil {
		metrics = framework.NoOpMetrics{}
	}

	normalized, err := cfg.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}

	m := &ManagerInstance{
		cfg:     normalized,
		running: atomic.NewBool(false),
		state:   atomic.NewInt32(int32(StateStopped)),
		logger:  log,
		metrics: metrics,
	}
	m.subscriber = framework.NewSubscriber(&m.cfg, source, log, metrics)
	m.processor = framework.NewProcessor(&m.cfg, source, handler, log, metrics)

	return m, nil
}

// Start 启动 Manager，创建 Concurrency 个并行 Worker 后立即返回
func (m *ManagerInstance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.CAS(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyStarted
	}

	m.logger.Infof(ctx, "[Manager] Starting %d workers for queue: %s", m.cfg.Concurrency, m.cfg.QueueName)

	// 从父 Context 派生，取消即通知所有 Worker
	runCtx, cancel := context.WithCancel(ctx)
	run := &runState{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.running.Store(true)

	for i := 0; i < m.cfg.Concurrency; i++ {
		w := newWorkerInstance(i, m.subscriber, m.processor, m.running, m.cfg.CycleDelay, m.logger, m.metrics, m.cfg.QueueName)
		run.wg.Add(1)
		go func() {
			defer run.wg.Done()
			m.supervise(runCtx, w)
		}()
	}

	go func() {
		run.wg.Wait()
		close(run.done)
	}()

	m.run = run
	m.metrics.SetActiveWorkers(m.cfg.QueueName, m.cfg.Concurrency)
	m.state.Store(int32(StateRunning))

	m.logger.Infof(ctx, "[Manager] Listener started for queue: %s", m.cfg.QueueName)
	return nil
}

// Stop 优雅退出：不再开始新的周期，等待在途周期完成
// 未启动或重复调用时为 no-op
func (m *ManagerInstance) Stop() {
	ctx := context.Background()
	m.logger.Infof(ctx, "[Manager] Stopping listener for queue: %s", m.cfg.QueueName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.CAS(int32(StateRunning), int32(StateStopping)) {
		m.logger.Debugf(ctx, "[Manager] Listener is not running, nothing to stop")
		return
	}

	// 1. 关闭运行标志（Worker 在周期之间检查）
	m.running.Store(false)

	// 2. 取消所有订阅
	m.run.cancel()

	// 3. 等待 Worker 池退出
	<-m.run.done

	m.metrics.SetActiveWorkers(m.cfg.QueueName, 0)
	m.state.Store(int32(StateStopped))
	m.logger.Infof(ctx, "[Manager] Listener stopped.")
}

// Done 当前运行的所有 Worker 退出后关闭；从未启动时返回已关闭的通道
func (m *ManagerInstance) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.run.done
}

// State 当前生命周期状态
func (m *ManagerInstance) State() State {
	return State(m.state.Load())
}

// Running 运行标志
func (m *ManagerInstance) Running() bool {
	return m.running.Load()
}

// supervise 运行单个 Worker，区分主动停止与异常退出
func (m *ManagerInstance) supervise(ctx context.Context, w *WorkerInstance) {
	err := w.Run(ctx)
	switch {
	case err == nil, errors.Is(err, framework.ErrShutdown):
		m.logger.Infof(ctx, "[Manager] Worker-%d polling stopped intentionally as part of shutdown process", w.id)
	default:
		m.logger.Errorf(ctx, "[Manager] Worker-%d terminated with an unexpected error: %v", w.id, err)
	}
}
