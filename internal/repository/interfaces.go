// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/linkman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	// メールアドレスはローカル登録・フェデレーションの両認証経路で自然キーとなる。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しないIDでもエラーにしない（冪等）。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// LinkRepository は短縮リンクデータの永続化インターフェース。
// 全ての検索・削除は所有者IDでスコープされ、他ユーザーのリンクには
// 決して到達できない。
type LinkRepository interface {
	// FindByOwnerAndURL は所有者IDと元URLでリンクを検索する。見つからない場合はnilを返す。
	// 同一URLの再投稿時に既存コードを再利用するために使用する。
	FindByOwnerAndURL(ctx context.Context, ownerID, originalURL string) (*model.Link, error)

	// FindByOwnerAndCode は所有者IDと短縮コードでリンクを検索する。見つからない場合はnilを返す。
	FindByOwnerAndCode(ctx context.Context, ownerID, shortCode string) (*model.Link, error)

	// ListByOwner は所有者のリンク一覧を作成日時降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Link, error)

	// Create はリンクを作成する。短縮コードが衝突した場合はErrShortCodeTakenを返す。
	Create(ctx context.Context, link *model.Link) error

	// DeleteByOwnerAndCode は所有者IDと短縮コードでリンクを削除する。
	// 削除対象が存在しない（または他ユーザー所有の）場合はfalseを返す。
	DeleteByOwnerAndCode(ctx context.Context, ownerID, shortCode string) (bool, error)
}
