package probe

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
)

type mockPinger struct {
	pingFn func(ctx context.Context) *model.APIError
}

func (m *mockPinger) Ping(ctx context.Context) *model.APIError {
	return m.pingFn(ctx)
}

type mockSink struct {
	mu     sync.Mutex
	states []bool
}

func (m *mockSink) SetBackendUp(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, up)
}

func (m *mockSink) recorded() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.states...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbe_ReportsOutcomeToSink(t *testing.T) {
	sink := &mockSink{}
	up := &mockPinger{pingFn: func(ctx context.Context) *model.APIError { return nil }}
	p := NewProber(up, sink, testLogger(), time.Minute)

	if err := p.probe(context.Background()); err != nil {
		t.Fatalf("probe() error = %v", err)
	}

	down := &mockPinger{pingFn: func(ctx context.Context) *model.APIError {
		return model.NewNetworkFailureError("refused")
	}}
	p = NewProber(down, sink, testLogger(), time.Minute)

	if err := p.probe(context.Background()); err == nil {
		t.Fatal("probe() should surface the ping failure")
	}

	got := sink.recorded()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("sink saw %v, want [true false]", got)
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	p := NewProber(nil, nil, testLogger(), time.Second)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // 16s capped at 10x interval
		{20, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.backoff(tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestStart_FirstProbeRunsImmediately(t *testing.T) {
	probed := make(chan struct{}, 1)
	pinger := &mockPinger{pingFn: func(ctx context.Context) *model.APIError {
		select {
		case probed <- struct{}{}:
		default:
		}
		return nil
	}}
	p := NewProber(pinger, &mockSink{}, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	select {
	case <-probed:
	case <-time.After(time.Second):
		t.Fatal("the first probe should not wait for the interval")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return once the context is cancelled")
	}
}
