package model

import "time"

// Link はユーザーが所有する短縮リンク（短縮コードと元URLの対応）を表す。
// ShortCodeは所有者に関係なく全体で一意。
// (UserID, OriginalURL) の組につきリンクは高々1件で、同じURLを再投稿した
// 場合は既存のコードが再利用される。
type Link struct {
	ID          string
	UserID      string
	ShortCode   string
	OriginalURL string
	CreatedAt   time.Time
}
