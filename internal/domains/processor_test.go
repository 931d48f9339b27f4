package domains

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"oip/dpreport/internal/business"
	"oip/dpreport/internal/framework"
	"oip/dpreport/pkg/errorutil"
	"oip/dpreport/pkg/logger"
)

type fakeSaver struct {
	mu      sync.Mutex
	saved   []business.Metric
	traceID interface{}
	err     error
	entered chan struct{} // 非 nil 时进入 SaveMetric 后通知
	release chan error    // 非 nil 时阻塞直到收到结果
}

func (s *fakeSaver) SaveMetric(ctx context.Context, m business.Metric) (*business.Metric, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	var err error
	if s.release != nil {
		err = <-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traceID = ctx.Value("trace_id")
	if err == nil {
		err = s.err
	}
	if err != nil {
		return nil, err
	}
	s.saved = append(s.saved, m)
	return &m, nil
}

func (s *fakeSaver) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// fakeDedup 内存版两阶段去重
type fakeDedup struct {
	mu       sync.Mutex
	marks    map[string]business.DedupStatus
	beginErr error
	released []string
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{marks: map[string]business.DedupStatus{}}
}

func (d *fakeDedup) Begin(ctx context.Context, id string) (business.DedupStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return business.DedupNew, d.beginErr
	}
	if status, ok := d.marks[id]; ok {
		return status, nil
	}
	d.marks[id] = business.DedupInProgress
	return business.DedupNew, nil
}

func (d *fakeDedup) Complete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marks[id] = business.DedupDone
	return nil
}

func (d *fakeDedup) Release(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.marks[id] == business.DedupInProgress {
		delete(d.marks, id)
	}
	d.released = append(d.released, id)
	return nil
}

// expireProcessing 模拟 processing 标记 TTL 到期（进程崩溃后）
func (d *fakeDedup) expireProcessing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, status := range d.marks {
		if status == business.DedupInProgress {
			delete(d.marks, id)
		}
	}
}

func (d *fakeDedup) status(id string) (business.DedupStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.marks[id]
	return status, ok
}

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func TestGetProcess_SavesMetric(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{}
	handler := GetProcess(log, saver, nil)

	err := handler(context.Background(), &framework.Message{ID: "m1", Body: `{"name":"quantity","value":3}`})
	require.NoError(t, err)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "quantity", saver.saved[0].Name)
	assert.True(t, saver.saved[0].Value.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "m1", saver.traceID)
}

func TestGetProcess_DecimalValues(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{}
	handler := GetProcess(log, saver, nil)

	bodies := []string{
		`{"name":"quantity","value":0.1}`,
		`{"name":"quantity","value":"0.2"}`,
		`{"name":"quantity","value":12345678901234567890.5}`,
	}
	for _, body := range bodies {
		require.NoError(t, handler(context.Background(), &framework.Message{ID: "m", Body: body}))
	}

	assert.Equal(t, "0.1", saver.saved[0].Value.String())
	assert.Equal(t, "0.2", saver.saved[1].Value.String())
	assert.Equal(t, "12345678901234567890.5", saver.saved[2].Value.String())
}

func TestGetProcess_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"empty name", `{"name":"","value":1}`},
		{"missing value", `{"name":"quantity"}`},
		{"bad value", `{"name":"quantity","value":"abc"}`},
		{"bool value", `{"name":"quantity","value":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := newObservedLogger()
			saver := &fakeSaver{}
			handler := GetProcess(log, saver, nil)

			err := handler(context.Background(), &framework.Message{ID: "m1", Body: tt.body})
			require.Error(t, err)
			assert.False(t, errorutil.IsRetriable(err))
			assert.Empty(t, saver.saved)
			assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
		})
	}
}

func TestGetProcess_SaveError(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{err: errors.New("lock wait timeout")}
	handler := GetProcess(log, saver, nil)

	err := handler(context.Background(), &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`})
	assert.ErrorIs(t, err, saver.err)
}

func TestGetProcess_TraceIDGeneratedWithoutMessageID(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{}
	handler := GetProcess(log, saver, newFakeDedup())

	require.NoError(t, handler(context.Background(), &framework.Message{Body: `{"name":"quantity","value":1}`}))
	traceID, ok := saver.traceID.(string)
	require.True(t, ok)
	assert.Len(t, traceID, 36)
}

func TestGetProcess_DedupSkipsRedelivery(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{}
	dedup := newFakeDedup()
	handler := GetProcess(log, saver, dedup)

	msg := &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`}
	require.NoError(t, handler(context.Background(), msg))
	require.NoError(t, handler(context.Background(), msg))

	assert.Len(t, saver.saved, 1)
}

func TestGetProcess_DedupReleasedOnFailure(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{err: errors.New("db down")}
	dedup := newFakeDedup()
	handler := GetProcess(log, saver, dedup)

	msg := &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`}
	require.Error(t, handler(context.Background(), msg))
	assert.Equal(t, []string{"m1"}, dedup.released)
	_, marked := dedup.status("m1")
	assert.False(t, marked)

	// 重新投递后可以处理
	saver.err = nil
	require.NoError(t, handler(context.Background(), msg))
	assert.Len(t, saver.saved, 1)

	status, _ := dedup.status("m1")
	assert.Equal(t, business.DedupDone, status)
}

// TestGetProcess_OverlappingDelivery 第一次投递仍在处理时，重新投递不能被确认
func TestGetProcess_OverlappingDelivery(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{entered: make(chan struct{}, 2), release: make(chan error, 2)}
	dedup := newFakeDedup()
	handler := GetProcess(log, saver, dedup)
	msg := &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- handler(context.Background(), msg)
	}()
	<-saver.entered

	// 重新投递：返回可重试错误，消息留在队列中
	err := handler(context.Background(), msg)
	require.ErrorIs(t, err, ErrDeliveryInProgress)
	assert.True(t, errorutil.IsRetriable(err))

	// 第一次投递失败
	saver.release <- errors.New("db timeout")
	require.Error(t, <-firstDone)
	assert.Equal(t, 0, saver.savedCount())

	// 下一次投递完成累加
	saver.release <- nil
	require.NoError(t, handler(context.Background(), msg))
	<-saver.entered
	assert.Equal(t, 1, saver.savedCount())
}

// TestGetProcess_RedeliveryAfterCrash processing 标记过期后重新投递仍被处理
func TestGetProcess_RedeliveryAfterCrash(t *testing.T) {
	log, _ := newObservedLogger()
	saver := &fakeSaver{}
	dedup := newFakeDedup()
	handler := GetProcess(log, saver, dedup)
	msg := &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`}

	// 崩溃前只写入了 processing 标记
	status, err := dedup.Begin(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, business.DedupNew, status)

	require.ErrorIs(t, handler(context.Background(), msg), ErrDeliveryInProgress)
	assert.Empty(t, saver.saved)

	dedup.expireProcessing()
	require.NoError(t, handler(context.Background(), msg))
	assert.Len(t, saver.saved, 1)
}

func TestGetProcess_DedupErrorIsBestEffort(t *testing.T) {
	log, logs := newObservedLogger()
	saver := &fakeSaver{}
	dedup := newFakeDedup()
	dedup.beginErr = errors.New("redis timeout")
	handler := GetProcess(log, saver, dedup)

	require.NoError(t, handler(context.Background(), &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`}))
	assert.Len(t, saver.saved, 1)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

type panicSaver struct{}

func (panicSaver) SaveMetric(ctx context.Context, m business.Metric) (*business.Metric, error) {
	panic("nil map")
}

// TestGetProcess_DedupReleasedOnPanic 处理 panic 时不能写入完成标记
func TestGetProcess_DedupReleasedOnPanic(t *testing.T) {
	log, _ := newObservedLogger()
	dedup := newFakeDedup()
	handler := GetProcess(log, panicSaver{}, dedup)

	assert.Panics(t, func() {
		_ = handler(context.Background(), &framework.Message{ID: "m1", Body: `{"name":"quantity","value":1}`})
	})
	_, marked := dedup.status("m1")
	assert.False(t, marked)
}
