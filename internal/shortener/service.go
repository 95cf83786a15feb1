// Package shortener は短縮リンクの発行・解決・管理を提供する。
package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hitoshi/linkman/internal/model"
	"github.com/hitoshi/linkman/internal/repository"
	"github.com/hitoshi/linkman/internal/security"
)

// maxCodeRetries は短縮コード衝突時の再生成回数の上限。
const maxCodeRetries = 5

// ErrMaxRetriesExceeded は短縮コードの生成リトライ上限に達したことを示す。
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

// Metrics は短縮リンク関連のメトリクスを記録するインターフェース。
type Metrics interface {
	RecordLinkCreated()
	RecordRedirect()
}

// noopMetrics はメトリクスが未設定の場合に使用される空実装。
type noopMetrics struct{}

func (noopMetrics) RecordLinkCreated() {}
func (noopMetrics) RecordRedirect()   {}

// ServiceConfig はShortenerサービスの設定。
type ServiceConfig struct {
	// ShortCodeLength は生成する短縮コードの文字数
	ShortCodeLength int
	// VerifyTargets がtrueの場合、登録時に対象URLへの到達確認を行う
	VerifyTargets bool
	// VerifyTimeout は到達確認のタイムアウト
	VerifyTimeout time.Duration
}

// Service は短縮リンクのビジネスロジックを提供する。
// 全ての操作は呼び出し元ユーザー（所有者）のIDでスコープされる。
type Service struct {
	linkRepo repository.LinkRepository
	guard    security.URLGuardService
	metrics  Metrics
	config   ServiceConfig
}

// NewService はShortenerサービスを生成する。
// metricsがnilの場合は記録を行わない。
func NewService(linkRepo repository.LinkRepository, guard security.URLGuardService, metrics Metrics, config ServiceConfig) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.ShortCodeLength <= 0 {
		config.ShortCodeLength = 8
	}
	return &Service{
		linkRepo: linkRepo,
		guard:    guard,
		metrics:  metrics,
		config:   config,
	}
}

// Submit はURLを短縮登録する。
// 同じ所有者が同じURLを再投稿した場合は既存のリンクをそのまま返す。
// 新規の場合は短縮コードを生成して保存する。コードは全体で一意であり、
// 衝突した場合は再生成してリトライする。
func (s *Service) Submit(ctx context.Context, ownerID, rawURL string) (*model.Link, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewInvalidURLError("URLが空です")
	}

	// 1. URLの安全性検証
	if err := s.guard.ValidateURL(rawURL); err != nil {
		slog.Info("rejected unsafe URL", "user_id", ownerID, "error", err)
		return nil, model.NewInvalidURLError(err.Error())
	}

	// 2. オプションの到達確認
	if s.config.VerifyTargets {
		probeCtx, cancel := context.WithTimeout(ctx, s.config.VerifyTimeout)
		defer cancel()
		if err := s.guard.ProbeTarget(probeCtx, rawURL); err != nil {
			slog.Info("link target verification failed", "user_id", ownerID, "error", err)
			return nil, model.NewInvalidURLError("リンク先に到達できません")
		}
	}

	// 3. 同一所有者・同一URLの既存リンクを再利用
	existing, err := s.linkRepo.FindByOwnerAndURL(ctx, ownerID, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing link: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// 4. 短縮コードを生成して保存（衝突時はリトライ）
	for i := 0; i < maxCodeRetries; i++ {
		code, err := gonanoid.New(s.config.ShortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}

		link := &model.Link{
			ID:          uuid.New().String(),
			UserID:      ownerID,
			ShortCode:   code,
			OriginalURL: rawURL,
			CreatedAt:   time.Now(),
		}

		if err := s.linkRepo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrShortCodeTaken) {
				slog.Warn("short code collision, retrying", "code", code, "attempt", i+1)
				continue
			}
			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		s.metrics.RecordLinkCreated()
		return link, nil
	}

	return nil, ErrMaxRetriesExceeded
}

// Resolve は短縮コードから元URLへ解決する。
// 所有者スコープで検索するため、他人のリンクも存在しないコードも
// 同一のLINK_NOT_FOUNDエラーになる。
func (s *Service) Resolve(ctx context.Context, ownerID, code string) (*model.Link, error) {
	link, err := s.linkRepo.FindByOwnerAndCode(ctx, ownerID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve short code: %w", err)
	}
	if link == nil {
		return nil, model.NewLinkNotFoundError(code)
	}

	s.metrics.RecordRedirect()
	return link, nil
}

// List は所有者のリンク一覧を返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Link, error) {
	links, err := s.linkRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// Delete は所有者のリンクを削除する。
// 他人のリンクや存在しないコードはLINK_NOT_FOUNDになる。
func (s *Service) Delete(ctx context.Context, ownerID, code string) error {
	deleted, err := s.linkRepo.DeleteByOwnerAndCode(ctx, ownerID, code)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if !deleted {
		return model.NewLinkNotFoundError(code)
	}
	return nil
}
