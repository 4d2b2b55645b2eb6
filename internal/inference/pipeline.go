package inference

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/raincast/internal/model"
)

// FeatureCount は予測に使用する特徴量の数。
const FeatureCount = 8

// featureOrder は学習時の特徴量の列順。スケーラと分類器はこの順序で
// 適合されており、順序を変えると予測結果が壊れる。
// "temparature"の綴りは学習データ由来のものでアーティファクトとの契約の一部。
var featureOrder = []string{
	"pressure",
	"temparature",
	"dewpoint",
	"humidity",
	"cloud",
	"sunshine",
	"winddirection",
	"windspeed",
}

// Result は1回の予測の結果を表す。
// FallbackAppliedはエンコーダではなく固定マッピングでラベルを決定した
// ことを示す。テストやメトリクスがログに頼らずデコード経路を区別できる。
type Result struct {
	Label           string
	Code            int
	FallbackApplied bool
}

// Pipeline は降雨予測パイプラインを表す。
// 全アーティファクトはイミュータブルで、ロックなしで全リクエストから共有できる。
type Pipeline struct {
	scaler     *ScalerArtifact
	classifier *ClassifierArtifact
	encoder    *EncoderArtifact // nilの場合はフォールバックデコードで動作する
}

// NewPipeline はPipelineを生成する。
// スケーラと分類器は必須。エンコーダはnilを許容し、その場合は
// フォールバックデコードで動作する。
// スケーラの特徴量リストが学習時の列順と一致しない場合はエラーを返す。
func NewPipeline(scaler *ScalerArtifact, classifier *ClassifierArtifact, encoder *EncoderArtifact) (*Pipeline, error) {
	if scaler == nil {
		return nil, fmt.Errorf("scaler artifact is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier artifact is required")
	}

	if len(scaler.Features) != FeatureCount || len(scaler.Mean) != FeatureCount || len(scaler.Scale) != FeatureCount {
		return nil, fmt.Errorf("scaler dimensions mismatch: features=%d mean=%d scale=%d want %d",
			len(scaler.Features), len(scaler.Mean), len(scaler.Scale), FeatureCount)
	}
	if len(classifier.Weights) != FeatureCount {
		return nil, fmt.Errorf("classifier has %d weights, want %d", len(classifier.Weights), FeatureCount)
	}

	for i, name := range featureOrder {
		if scaler.Features[i] != name {
			return nil, fmt.Errorf("scaler feature order mismatch at column %d: got %q, want %q",
				i, scaler.Features[i], name)
		}
	}

	return &Pipeline{
		scaler:     scaler,
		classifier: classifier,
		encoder:    encoder,
	}, nil
}

// LoadPipeline は3つのアーティファクトを読み込みPipelineを構築する。
// スケーラと分類器の読み込み失敗は致命的エラーとして返す。
// エンコーダの読み込み失敗は警告ログのみで、フォールバックデコードに
// 移行する（プロセス存続中の再読み込みは行わない）。
func LoadPipeline(scalerPath, classifierPath, encoderPath string) (*Pipeline, error) {
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scaler: %w", err)
	}

	classifier, err := LoadClassifier(classifierPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}

	encoder, err := LoadEncoder(encoderPath)
	if err != nil {
		slog.Warn("encoder artifact unavailable, predictions will use fallback label mapping",
			slog.String("path", encoderPath),
			slog.String("error", err.Error()),
		)
		encoder = nil
	}

	return NewPipeline(scaler, classifier, encoder)
}

// FallbackMode はエンコーダなしのフォールバックデコードで動作しているかを返す。
func (p *Pipeline) FallbackMode() bool {
	return p.encoder == nil
}

// Predict は8つの観測値から降雨予測ラベルを決定する。
// 処理は決定的で、同一の入力（と同一のアーティファクト）からは常に
// 同一の結果を返す。エラーは返さない。
func (p *Pipeline) Predict(input model.PredictionInput) Result {
	row := assemble(input)
	scaled := p.scaler.Transform(row)
	code := p.classifier.Predict(scaled)
	label, fallback := p.decode(code)

	return Result{
		Label:           label,
		Code:            code,
		FallbackApplied: fallback,
	}
}

// assemble は入力を学習時の列順に並べた1行の特徴量ベクトルに変換する。
func assemble(input model.PredictionInput) []float64 {
	return []float64{
		input.Pressure,
		input.Temperature,
		input.Dewpoint,
		input.Humidity,
		input.Cloud,
		input.Sunshine,
		input.WindDirection,
		input.WindSpeed,
	}
}

// decode はクラスコードをラベルに変換する。
// エンコーダが利用可能ならinverse-transformを使い、エンコーダが無い
// またはデコードに失敗した場合は固定マッピングにフォールバックする。
// フォールバックは決して失敗しない終端ステージ。
func (p *Pipeline) decode(code int) (label string, fallback bool) {
	if p.encoder != nil {
		if decoded, err := p.encoder.InverseTransform(code); err == nil {
			return decoded, false
		}
	}
	return fallbackLabel(code), true
}

// fallbackLabel はクラスコードの固定マッピング。0→"no"、1→"yes"、
// その他のコードは文字列表現をそのまま返す。
func fallbackLabel(code int) string {
	switch code {
	case 0:
		return "no"
	case 1:
		return "yes"
	default:
		return strconv.Itoa(code)
	}
}
