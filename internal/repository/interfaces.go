// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/raincast/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	// 未知のユーザー名はエラーではなく自動登録のトリガーとなる。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しないIDは何もしない。
	DeleteByID(ctx context.Context, id string) error
}

// PredictionRepository は予測記録の永続化インターフェース。
// 記録は作成のみで、更新・削除は提供しない。
type PredictionRepository interface {
	// Create は予測記録を作成し、採番されたIDと作成日時をpredictionに設定する。
	Create(ctx context.Context, prediction *model.Prediction) error

	// ListByUserID は指定ユーザーの予測記録を新しい順に返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Prediction, error)
}
