// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Emailはローカル登録・フェデレーションログインの両方で自然キーとなる
// （1メールアドレスにつき1ユーザー）。
type User struct {
	ID    string
	Email string
	// PasswordHash はローカル登録ユーザーのbcryptハッシュを保持する。
	// フェデレーションで自動作成されたユーザーの場合は、パスワードの
	// 代わりにプロバイダー発行のsubject idが格納される（秘密情報ではない）。
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// クライアントに渡るのは不透明なIDのみで、ユーザーIDへの参照以外の
// 情報は一切シリアライズしない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
