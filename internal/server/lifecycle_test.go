package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	started atomic.Bool
	stopCh  chan struct{}
	once    sync.Once
	startFn func() error
	onStop  func()
}

func newMockService() *mockService {
	return &mockService{stopCh: make(chan struct{})}
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	<-m.stopCh
	return nil
}

func (m *mockService) Stop() {
	m.once.Do(func() {
		if m.onStop != nil {
			m.onStop()
		}
		close(m.stopCh)
	})
}

func TestLifecycle_StartsAndStopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	var mu sync.Mutex
	var order []string
	svc1, svc2 := newMockService(), newMockService()
	svc1.onStop = func() { mu.Lock(); order = append(order, "svc1"); mu.Unlock() }
	svc2.onStop = func() { mu.Lock(); order = append(order, "svc2"); mu.Unlock() }
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc1.started.Load() && svc2.started.Load()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not stop")
	}
	assert.Equal(t, []string{"svc2", "svc1"}, order)
}

func TestLifecycle_ServiceFailureStopsAll(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	healthy := newMockService()
	failing := newMockService()
	failing.startFn = func() error { return errors.New("boom") }
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")

	select {
	case <-healthy.stopCh:
	default:
		t.Fatal("healthy service was not stopped")
	}
}
