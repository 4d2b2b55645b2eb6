package model

import "time"

// PredictionInput は降雨予測に使用する8つの気象観測値を表す。
// ハンドラー層で型・必須検証済みの値のみがここに入る。
type PredictionInput struct {
	Pressure      float64 `json:"pressure"`
	Temperature   float64 `json:"temperature"`
	Dewpoint      float64 `json:"dewpoint"`
	Humidity      float64 `json:"humidity"`
	Cloud         float64 `json:"cloud"`
	Sunshine      float64 `json:"sunshine"`
	WindDirection float64 `json:"wind_direction"`
	WindSpeed     float64 `json:"wind_speed"`
}

// Prediction は1回の予測リクエストの記録を表す。
// 作成後は不変。Inputは送信された観測値のスナップショットをそのまま保持する。
type Prediction struct {
	ID             int64
	UserID         int64
	Input          PredictionInput
	PredictedLabel string
	CreatedAt      time.Time
}
