package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/linkman/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// PostgresLinkRepo はPostgreSQLを使用した短縮リンクリポジトリ。
type PostgresLinkRepo struct {
	db *sql.DB
}

// NewPostgresLinkRepo はPostgresLinkRepoを生成する。
func NewPostgresLinkRepo(db *sql.DB) *PostgresLinkRepo {
	return &PostgresLinkRepo{db: db}
}

// FindByOwnerAndURL は所有者IDと元URLでリンクを検索する。見つからない場合はnilを返す。
func (r *PostgresLinkRepo) FindByOwnerAndURL(ctx context.Context, ownerID, originalURL string) (*model.Link, error) {
	link := &model.Link{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, short_code, original_url, created_at
		 FROM links
		 WHERE user_id = $1 AND original_url = $2`,
		ownerID, originalURL,
	).Scan(&link.ID, &link.UserID, &link.ShortCode, &link.OriginalURL, &link.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link by URL: %w", err)
	}

	return link, nil
}

// FindByOwnerAndCode は所有者IDと短縮コードでリンクを検索する。見つからない場合はnilを返す。
// 他ユーザー所有のコードも「見つからない」として扱われる。
func (r *PostgresLinkRepo) FindByOwnerAndCode(ctx context.Context, ownerID, shortCode string) (*model.Link, error) {
	link := &model.Link{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, short_code, original_url, created_at
		 FROM links
		 WHERE user_id = $1 AND short_code = $2`,
		ownerID, shortCode,
	).Scan(&link.ID, &link.UserID, &link.ShortCode, &link.OriginalURL, &link.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link by code: %w", err)
	}

	return link, nil
}

// ListByOwner は所有者のリンク一覧を作成日時降順で返す。
func (r *PostgresLinkRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, short_code, original_url, created_at
		 FROM links
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*model.Link
	for rows.Next() {
		link := &model.Link{}
		if err := rows.Scan(&link.ID, &link.UserID, &link.ShortCode, &link.OriginalURL, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate link rows: %w", err)
	}

	return links, nil
}

// Create はリンクを作成する。
// short_codeの一意制約違反はErrShortCodeTakenに変換して返す。
func (r *PostgresLinkRepo) Create(ctx context.Context, link *model.Link) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO links (id, user_id, short_code, original_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		link.ID, link.UserID, link.ShortCode, link.OriginalURL, link.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrShortCodeTaken
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// DeleteByOwnerAndCode は所有者IDと短縮コードでリンクを削除する。
// WHERE句で所有者を強制するため、他ユーザーのリンクは削除できない。
func (r *PostgresLinkRepo) DeleteByOwnerAndCode(ctx context.Context, ownerID, shortCode string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM links WHERE user_id = $1 AND short_code = $2`,
		ownerID, shortCode,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ LinkRepository = (*PostgresLinkRepo)(nil)
