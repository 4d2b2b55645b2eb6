// Package inference は学習済みアーティファクトの読み込みと予測パイプラインを提供する。
//
// アーティファクトは学習パイプライン（スコープ外）が出力したJSONファイルで、
// プロセス起動時に1回だけ読み込み、以後イミュータブルとして全リクエストで
// 共有する。スケーラと分類器は必須、ラベルエンコーダは任意。
package inference

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScalerArtifact は学習時に適合済みの特徴量スケーラを表す。
// Featuresは学習時の列順をそのまま保持する。
type ScalerArtifact struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// Transform は1行の特徴量ベクトルを正規化する。
func (s *ScalerArtifact) Transform(row []float64) []float64 {
	scaled := make([]float64, len(row))
	for i, v := range row {
		scaled[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return scaled
}

// ClassifierArtifact は学習済みの二値線形分類器を表す。
type ClassifierArtifact struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Predict はスケール済みの特徴量ベクトルからクラスコードを返す。
// 決定関数値が正なら1、それ以外は0。
func (c *ClassifierArtifact) Predict(row []float64) int {
	sum := c.Bias
	for i, v := range row {
		sum += c.Weights[i] * v
	}
	if sum > 0 {
		return 1
	}
	return 0
}

// EncoderArtifact は学習済みのラベルエンコーダを表す。
// Classesはクラスコードをインデックスとするラベルの配列。
type EncoderArtifact struct {
	Classes []string `json:"classes"`
}

// InverseTransform はクラスコードをラベル文字列に変換する。
// コードが範囲外の場合はエラーを返す。
func (e *EncoderArtifact) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("class code %d out of range (classes: %d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// LoadScaler はスケーラアーティファクトをJSONファイルから読み込む。
// 各配列の長さが特徴量数と一致しない場合、またはスケールに0が含まれる
// 場合はエラーを返す。
func LoadScaler(path string) (*ScalerArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler artifact: %w", err)
	}

	scaler := &ScalerArtifact{}
	if err := json.Unmarshal(data, scaler); err != nil {
		return nil, fmt.Errorf("failed to parse scaler artifact: %w", err)
	}

	if len(scaler.Features) != FeatureCount {
		return nil, fmt.Errorf("scaler has %d features, want %d", len(scaler.Features), FeatureCount)
	}
	if len(scaler.Mean) != FeatureCount || len(scaler.Scale) != FeatureCount {
		return nil, fmt.Errorf("scaler mean/scale dimensions mismatch: mean=%d scale=%d want %d",
			len(scaler.Mean), len(scaler.Scale), FeatureCount)
	}
	for i, s := range scaler.Scale {
		if s == 0 {
			return nil, fmt.Errorf("scaler scale[%d] is zero", i)
		}
	}

	return scaler, nil
}

// LoadClassifier は分類器アーティファクトをJSONファイルから読み込む。
func LoadClassifier(path string) (*ClassifierArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}

	classifier := &ClassifierArtifact{}
	if err := json.Unmarshal(data, classifier); err != nil {
		return nil, fmt.Errorf("failed to parse classifier artifact: %w", err)
	}

	if len(classifier.Weights) != FeatureCount {
		return nil, fmt.Errorf("classifier has %d weights, want %d", len(classifier.Weights), FeatureCount)
	}

	return classifier, nil
}

// LoadEncoder はラベルエンコーダアーティファクトをJSONファイルから読み込む。
func LoadEncoder(path string) (*EncoderArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder artifact: %w", err)
	}

	encoder := &EncoderArtifact{}
	if err := json.Unmarshal(data, encoder); err != nil {
		return nil, fmt.Errorf("failed to parse encoder artifact: %w", err)
	}

	if len(encoder.Classes) == 0 {
		return nil, fmt.Errorf("encoder has no classes")
	}

	return encoder, nil
}
