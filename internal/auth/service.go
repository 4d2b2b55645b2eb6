// Package auth はパスワード認証とセッション管理を提供する。
//
// ログインと登録は単一のフローに統合されている。未知のユーザー名での
// ログイン試行は拒否ではなく自動登録として扱う（初回ログイン時登録）。
// この設計ではユーザー名の衝突や「ログイン」経由のアカウント乗っ取りを
// 防ぐ仕組みがないことが既知の課題として残っている。挙動を変える場合は
// 利用者への告知が必要。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/raincast/internal/model"
	"github.com/hitoshi/raincast/internal/repository"
)

// Outcome は認証試行の結果を表す。
type Outcome string

const (
	// OutcomeRegistered は未知のユーザー名が自動登録されたことを示す。
	OutcomeRegistered Outcome = "registered"
	// OutcomeAuthenticated は既存ユーザーの認証成功を示す。
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeRejected は既存ユーザーのパスワード不一致を示す。
	OutcomeRejected Outcome = "rejected"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Authenticate はユーザー名とパスワードを検証する。
// 未知のユーザー名の場合はパスワードをハッシュ化してユーザーを新規作成し、
// OutcomeRegisteredを返す。ユーザーが見つからないこと自体はエラーではない。
// 既存ユーザーでパスワードが一致しない場合はOutcomeRejectedと
// InvalidCredentialsエラーを返す。
// パスワードは平文では保存も比較もしない。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, Outcome, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, OutcomeRejected, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 初回ログイン: 自動登録
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, OutcomeRejected, fmt.Errorf("failed to hash password: %w", err)
		}

		now := time.Now()
		newUser := &model.User{
			Username:     username,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.userRepo.Create(ctx, newUser); err != nil {
			return nil, OutcomeRejected, fmt.Errorf("failed to create user: %w", err)
		}

		slog.Info("new user registered",
			slog.Int64("user_id", newUser.ID),
			slog.String("username", username),
		)

		return newUser, OutcomeRegistered, nil
	}

	// bcryptの比較はタイミング攻撃に安全
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login rejected",
			slog.Int64("user_id", user.ID),
			slog.String("username", username),
		)
		return nil, OutcomeRejected, model.NewInvalidCredentialsError()
	}

	slog.Info("existing user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", username),
	)

	return user, OutcomeAuthenticated, nil
}

// Login は認証を行い、成功時にセッションを発行する。
// 戻り値のOutcomeはregistered/authenticated/rejectedのいずれか。
// rejectedの場合セッションは発行されない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, Outcome, error) {
	user, outcome, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, outcome, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, outcome, fmt.Errorf("failed to create session: %w", err)
	}

	return session, user, outcome, nil
}

// Logout はセッションを破棄する。冪等であり、空のセッションIDや
// 存在しないセッションIDに対してもエラーを返さない。
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

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
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
