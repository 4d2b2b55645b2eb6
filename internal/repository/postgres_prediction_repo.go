package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/raincast/internal/model"
)

// PostgresPredictionRepo はPostgreSQLを使用した予測記録リポジトリ。
// 入力スナップショットはJSONBカラムに格納する。
type PostgresPredictionRepo struct {
	db *sql.DB
}

// NewPostgresPredictionRepo はPostgresPredictionRepoを生成する。
func NewPostgresPredictionRepo(db *sql.DB) *PostgresPredictionRepo {
	return &PostgresPredictionRepo{db: db}
}

// Create は予測記録を作成し、採番されたIDと作成日時をpredictionに設定する。
func (r *PostgresPredictionRepo) Create(ctx context.Context, prediction *model.Prediction) error {
	input, err := json.Marshal(prediction.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction input: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO predictions (user_id, input, predicted_label)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		prediction.UserID, input, prediction.PredictedLabel,
	).Scan(&prediction.ID, &prediction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	return nil
}

// ListByUserID は指定ユーザーの予測記録を新しい順に返す。
func (r *PostgresPredictionRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Prediction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, input, predicted_label, created_at
		 FROM predictions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*model.Prediction
	for rows.Next() {
		p := &model.Prediction{}
		var input []byte
		if err := rows.Scan(&p.ID, &p.UserID, &input, &p.PredictedLabel, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal(input, &p.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prediction input: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return predictions, nil
}

// compile-time interface check
var _ PredictionRepository = (*PostgresPredictionRepo)(nil)
