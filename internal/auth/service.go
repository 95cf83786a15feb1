// Package auth はローカル認証・フェデレーション認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/linkman/internal/model"
	"github.com/hitoshi/linkman/internal/repository"
)

// AuthMethod は認証方式を表すタグ。
type AuthMethod string

const (
	// MethodLocal はメールアドレスとパスワードによるローカル認証。
	MethodLocal AuthMethod = "local"
	// MethodFederated は外部IdPの検証済みプロフィールによるフェデレーション認証。
	MethodFederated AuthMethod = "federated"
)

// FederatedProfile は外部IdPが検証済みのユーザープロフィールを表す。
// 少なくともメールアドレスとプロバイダー発行のsubject idを含む。
type FederatedProfile struct {
	SubjectID string
	Email     string
	Provider  string // "google" 等
}

// Credentials は単一のAuthenticateエントリポイントに渡す認証情報。
// Methodに応じて使用されるフィールドが切り替わるタグ付きバリアント。
type Credentials struct {
	Method AuthMethod

	// MethodLocal用
	Email    string
	Password string

	// MethodFederated用
	Profile *FederatedProfile
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// トークン交換と署名検証はプロバイダー実装に委譲し、本サービスは
// 検証済みプロフィールの照合（reconciliation）のみを担当する。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、検証済みプロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*FederatedProfile, error)
}

// Metrics は認証イベントの計測インターフェース。
type Metrics interface {
	RecordLogin(method string, success bool)
	RecordRegistration()
}

// noopMetrics は計測を行わないMetrics実装。
type noopMetrics struct{}

func (noopMetrics) RecordLogin(method string, success bool) {}
func (noopMetrics) RecordRegistration()                     {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // パスワードハッシュのコスト
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     Metrics
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsがnilの場合は計測を行わない。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Register はメールアドレスとパスワードで新規ユーザーを登録し、
// そのままセッションを発行する（登録後の再ログインは不要）。
// 同じメールアドレスのユーザーが既に存在する場合はAlreadyRegisteredを返す。
func (s *Service) Register(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidRequestError()
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyRegisteredError()
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
	)
	s.metrics.RecordRegistration()

	return s.createSession(ctx, user.ID)
}

// Authenticate は認証方式に応じたバリアントをディスパッチする
// 単一のエントリポイント。成功時はセッションを発行する。
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*model.Session, error) {
	switch creds.Method {
	case MethodLocal:
		return s.authenticateLocal(ctx, creds.Email, creds.Password)
	case MethodFederated:
		return s.authenticateFederated(ctx, creds.Profile)
	default:
		return nil, fmt.Errorf("unknown auth method: %q", creds.Method)
	}
}

// HandleGoogleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コードの交換はOAuthProviderに委譲し、取得した検証済みプロフィールを
// フェデレーション認証に渡す。
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*model.Session, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	return s.Authenticate(ctx, Credentials{
		Method:  MethodFederated,
		Profile: profile,
	})
}

// authenticateLocal はメールアドレスとパスワードでユーザーを認証する。
// アカウント列挙を防ぐため、ユーザー不在とパスワード不一致は
// 同一のInvalidCredentialsとして返す。ストアへの書き込みは行わない。
func (s *Service) authenticateLocal(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		s.metrics.RecordLogin(string(MethodLocal), false)
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", string(MethodLocal)),
	)
	s.metrics.RecordLogin(string(MethodLocal), true)

	return session, nil
}

// authenticateFederated は検証済みプロフィールをローカルユーザーに照合する。
// 同一メールアドレスのユーザーが存在すれば、その作成経緯に関わらず同一の
// アイデンティティとして扱う（merge-by-emailポリシー）。
// 存在しない場合はユーザーを自動作成する。password_hash列には
// プロバイダーのsubject idを格納する（ローカルパスワードは未設定）。
func (s *Service) authenticateFederated(ctx context.Context, profile *FederatedProfile) (*model.Session, error) {
	if profile == nil || profile.Email == "" || profile.SubjectID == "" {
		return nil, model.NewInvalidRequestError()
	}

	user, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil {
		now := time.Now()
		user = &model.User{
			ID:           uuid.New().String(),
			Email:        profile.Email,
			PasswordHash: profile.SubjectID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}

		slog.Info("new federated user created",
			slog.String("user_id", user.ID),
			slog.String("provider", profile.Provider),
		)
		s.metrics.RecordRegistration()
	} else {
		slog.Info("user logged in",
			slog.String("user_id", user.ID),
			slog.String("method", string(MethodFederated)),
		)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(string(MethodFederated), true)

	return session, nil
}

// Logout はセッションを破棄する。
// 既に無効なセッションIDや空のIDを渡してもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションIDから現在のユーザーを解決する。
// セッション検索に加えて必ずユーザー行を再取得するため、削除済み
// アカウントのセッションは次回の解決で即座に無効になる
// （トークン側にユーザー情報をキャッシュしない）。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
