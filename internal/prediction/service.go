// Package prediction は降雨予測の実行と記録のドメインロジックを提供する。
package prediction

import (
	"context"
	"log/slog"

	"github.com/hitoshi/raincast/internal/inference"
	"github.com/hitoshi/raincast/internal/model"
	"github.com/hitoshi/raincast/internal/repository"
)

// Predictor は予測パイプラインのインターフェース。
// inference.Pipelineの部分集合として定義し、テストでの差し替えを可能にする。
type Predictor interface {
	Predict(input model.PredictionInput) inference.Result
}

// MetricsRecorder は予測メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordPrediction(label string, fallback bool)
}

// Service は予測の実行と記録のサービス層。
type Service struct {
	repo     repository.PredictionRepository
	pipeline Predictor
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(repo repository.PredictionRepository, pipeline Predictor, metrics MetricsRecorder) *Service {
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		metrics:  metrics,
	}
}

// Submit は観測値から予測を実行し、記録を1件永続化する。
// 記録のInputは送信された観測値のスナップショットをそのまま保持し、
// UserIDはセッションに紐付いたユーザーのIDとなる。
// フォールバックデコードが適用された場合は警告ログとメトリクスにのみ
// 現れ、エンドユーザーへのレスポンスには影響しない。
func (s *Service) Submit(ctx context.Context, userID int64, input model.PredictionInput) (*model.Prediction, error) {
	result := s.pipeline.Predict(input)

	if result.FallbackApplied {
		slog.Warn("fallback label mapping applied",
			slog.Int64("user_id", userID),
			slog.Int("class_code", result.Code),
			slog.String("label", result.Label),
		)
	}

	record := &model.Prediction{
		UserID:         userID,
		Input:          input,
		PredictedLabel: result.Label,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		slog.Error("failed to save prediction",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}

	if s.metrics != nil {
		s.metrics.RecordPrediction(result.Label, result.FallbackApplied)
	}

	slog.Info("prediction recorded",
		slog.Int64("user_id", userID),
		slog.Int64("prediction_id", record.ID),
		slog.String("label", result.Label),
		slog.Bool("fallback", result.FallbackApplied),
	)

	return record, nil
}

// History は指定ユーザーの予測記録を新しい順に返す。
func (s *Service) History(ctx context.Context, userID int64) ([]*model.Prediction, error) {
	predictions, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to list predictions",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}
	return predictions, nil
}
