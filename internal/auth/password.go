package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = 10

// HashPassword は平文パスワードをbcryptでハッシュ化する。
// costが範囲外の場合はDefaultBcryptCostを使用する。
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword は平文パスワードと保存済みハッシュを定数時間で比較する。
// フェデレーション自動作成ユーザーのpassword_hash列にはbcryptハッシュでは
// なくプロバイダーのsubject idが入っているため、比較は常に失敗する
// （ローカルパスワードでのログインは不可）。
func VerifyPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
