package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// stubSink は送信呼び出しを記録するSink。
type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Send(_ context.Context, _ *model.ScrapeJob) error {
	s.calls++
	return s.err
}

func newTestDispatcher(sinks ...Sink) *Dispatcher {
	return NewDispatcher(sinks, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcher_NotifyJobFinished_AllSinks(t *testing.T) {
	first := &stubSink{name: "first"}
	second := &stubSink{name: "second"}
	d := newTestDispatcher(first, second)

	d.NotifyJobFinished(context.Background(), terminalJob(model.JobStatusSuccess))

	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", first.calls, second.calls)
	}
}

// TestDispatcher_NotifyJobFinished_SinkFailureIsIsolated はシンク失敗が他のシンクに波及しないことを検証する。
func TestDispatcher_NotifyJobFinished_SinkFailureIsIsolated(t *testing.T) {
	failing := &stubSink{name: "failing", err: errors.New("送信に失敗しました")}
	healthy := &stubSink{name: "healthy"}
	d := newTestDispatcher(failing, healthy)

	d.NotifyJobFinished(context.Background(), terminalJob(model.JobStatusFailure))

	if failing.calls != 1 {
		t.Errorf("failing calls = %d, want 1", failing.calls)
	}
	if healthy.calls != 1 {
		t.Errorf("healthy calls = %d, want 1 (失敗シンクの後でも試行されるべき)", healthy.calls)
	}
}

func TestDispatcher_NotifyJobFinished_SkipsNonTerminal(t *testing.T) {
	sink := &stubSink{name: "sink"}
	d := newTestDispatcher(sink)

	running := terminalJob(model.JobStatusStarted)
	d.NotifyJobFinished(context.Background(), running)
	d.NotifyJobFinished(context.Background(), nil)

	if sink.calls != 0 {
		t.Errorf("calls = %d, want 0 (非終端とnilは通知しない)", sink.calls)
	}
}

func TestDispatcher_NoSinks_NoOp(t *testing.T) {
	d := newTestDispatcher()
	// シンクなしでもパニックしないこと
	d.NotifyJobFinished(context.Background(), terminalJob(model.JobStatusSuccess))
}
