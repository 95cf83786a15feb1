package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// mockSessionCleaner はSessionCleanerのテスト用実装。
type mockSessionCleaner struct {
	deleteExpiredFn func(ctx context.Context) (int64, error)
	callCount       int
}

func (m *mockSessionCleaner) DeleteExpired(ctx context.Context) (int64, error) {
	m.callCount++
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

// mockCleanupMetrics はMetricsのテスト用実装。
type mockCleanupMetrics struct {
	cleaned int64
}

func (m *mockCleanupMetrics) RecordSessionsCleaned(count int64) {
	m.cleaned += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionCleaner{}, nil, newTestLogger(&buf))

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
	if job.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", job.Interval)
	}
}

func TestRun_DeletesExpiredSessionsAndRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	cleaner := &mockSessionCleaner{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 42, nil
		},
	}
	metrics := &mockCleanupMetrics{}

	job := NewCleanupJob(cleaner, metrics, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if cleaner.callCount != 1 {
		t.Errorf("DeleteExpired call count = %d, want 1", cleaner.callCount)
	}
	if metrics.cleaned != 42 {
		t.Errorf("recorded cleaned count = %d, want 42", metrics.cleaned)
	}

	// 完了ログに削除件数が含まれること
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	if entry["deleted_count"] != float64(42) {
		t.Errorf("deleted_count in log = %v, want 42", entry["deleted_count"])
	}
}

func TestRun_NothingToDelete_Succeeds(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionCleaner{}, nil, newTestLogger(&buf))

	// 冪等: 対象0件でもエラーにならない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
}

func TestRun_StoreError_ReturnsWrappedError(t *testing.T) {
	var buf bytes.Buffer
	storeErr := errors.New("connection refused")
	cleaner := &mockSessionCleaner{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 0, storeErr
		},
	}

	job := NewCleanupJob(cleaner, nil, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for store failure")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("error chain should contain the store error: %v", err)
	}
}

func TestRunLoop_RunsPeriodicallyUntilCancelled(t *testing.T) {
	var buf bytes.Buffer
	cleaner := &mockSessionCleaner{}

	job := NewCleanupJob(cleaner, nil, newTestLogger(&buf))
	job.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := job.RunLoop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunLoop should return the context error, got %v", err)
	}

	// 起動直後の1回 + ティックによる複数回の実行
	if cleaner.callCount < 2 {
		t.Errorf("DeleteExpired call count = %d, want >= 2", cleaner.callCount)
	}
}
