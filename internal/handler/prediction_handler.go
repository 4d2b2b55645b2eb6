package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/raincast/internal/middleware"
	"github.com/hitoshi/raincast/internal/model"
)

// PredictionServiceInterface は予測ハンドラーが必要とするサービスインターフェース。
type PredictionServiceInterface interface {
	Submit(ctx context.Context, userID int64, input model.PredictionInput) (*model.Prediction, error)
	History(ctx context.Context, userID int64) ([]*model.Prediction, error)
}

// PredictionHandler は予測関連のHTTPハンドラー。
type PredictionHandler struct {
	service PredictionServiceInterface
}

// NewPredictionHandler はPredictionHandlerを生成する。
func NewPredictionHandler(service PredictionServiceInterface) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// predictionRequest は予測リクエストのボディ。
// 8つの観測値すべてが必須のため、欠損検出用にポインタで受ける。
type predictionRequest struct {
	Pressure      *float64 `json:"pressure"`
	Temperature   *float64 `json:"temperature"`
	Dewpoint      *float64 `json:"dewpoint"`
	Humidity      *float64 `json:"humidity"`
	Cloud         *float64 `json:"cloud"`
	Sunshine      *float64 `json:"sunshine"`
	WindDirection *float64 `json:"wind_direction"`
	WindSpeed     *float64 `json:"wind_speed"`
}

// predictionResponse は予測記録のレスポンス表現。
type predictionResponse struct {
	ID             int64                 `json:"id"`
	Input          model.PredictionInput `json:"input"`
	PredictedLabel string                `json:"predicted_label"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Submit は観測値を受け取り予測を実行する。
// POST /api/predictions
// 8つの数値フィールドの存在と型をハンドラー境界で検証する。
func (h *PredictionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// 型不一致はフィールド名付きの検証エラーとして返す
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError(typeErr.Field))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONのデコードに失敗しました"))
		return
	}

	input, missingField := validatePredictionRequest(&req)
	if missingField != "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError(missingField))
		return
	}

	record, err := h.service.Submit(r.Context(), userID, input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPredictionResponse(record))
}

// List は現在のユーザーの予測履歴を新しい順に返す。
// GET /api/predictions
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	predictions, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	responses := make([]predictionResponse, 0, len(predictions))
	for _, p := range predictions {
		responses = append(responses, toPredictionResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"predictions": responses,
	})
}

// writeServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func (h *PredictionHandler) writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusFromAPIError(apiErr), apiErr)
		return
	}
	slog.Error("prediction service failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// validatePredictionRequest は8つの観測値の存在を検証し、入力値に変換する。
// 欠損があった場合は最初に見つかったフィールド名を返す。
func validatePredictionRequest(req *predictionRequest) (model.PredictionInput, string) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"pressure", req.Pressure},
		{"temperature", req.Temperature},
		{"dewpoint", req.Dewpoint},
		{"humidity", req.Humidity},
		{"cloud", req.Cloud},
		{"sunshine", req.Sunshine},
		{"wind_direction", req.WindDirection},
		{"wind_speed", req.WindSpeed},
	}

	for _, f := range fields {
		if f.value == nil {
			return model.PredictionInput{}, f.name
		}
	}

	return model.PredictionInput{
		Pressure:      *req.Pressure,
		Temperature:   *req.Temperature,
		Dewpoint:      *req.Dewpoint,
		Humidity:      *req.Humidity,
		Cloud:         *req.Cloud,
		Sunshine:      *req.Sunshine,
		WindDirection: *req.WindDirection,
		WindSpeed:     *req.WindSpeed,
	}, ""
}

// toPredictionResponse は予測記録をレスポンス表現に変換する。
func toPredictionResponse(p *model.Prediction) predictionResponse {
	return predictionResponse{
		ID:             p.ID,
		Input:          p.Input,
		PredictedLabel: p.PredictedLabel,
		CreatedAt:      p.CreatedAt,
	}
}
