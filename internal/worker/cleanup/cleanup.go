// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// expires_atを過ぎたセッション行を定期バッチで削除する。
// セッションの期限はSQL側でも検証されるため、このジョブは
// 行の掃除が目的であり、削除の遅延が認可に影響することはない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionCleaner は期限切れセッションの削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Metrics はクリーンアップ結果を記録するインターフェース。
type Metrics interface {
	RecordSessionsCleaned(count int64)
}

// noopMetrics はメトリクスが未設定の場合に使用される空実装。
type noopMetrics struct{}

func (noopMetrics) RecordSessionsCleaned(count int64) {}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions SessionCleaner
	metrics  Metrics
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// metricsがnilの場合は記録を行わない。
func NewCleanupJob(sessions SessionCleaner, metrics Metrics, logger *slog.Logger) *CleanupJob {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &CleanupJob{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		Interval: time.Hour,
	}
}

// Run は期限切れセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsCleaned(deletedCount)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunLoop はIntervalごとにRunを実行し続ける。
// コンテキストのキャンセルで終了する。起動直後に1回実行する。
func (j *CleanupJob) RunLoop(ctx context.Context) error {
	if err := j.Run(ctx); err != nil {
		j.logger.Warn("initial cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
