package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func limitedRequest(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		PredictRate:     1,
		PredictBurst:    10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, limitedRequest(1))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		PredictRate:     1,
		PredictBurst:    10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, limitedRequest(7))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(7))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    1,
		PredictRate:     1,
		PredictBurst:    10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 1回目は通る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(8))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	// 2回目は429 + Retry-After
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(8))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("Retry-After header is missing")
	}
	sec, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Fatalf("Retry-After is not an integer: %q", retryAfter)
	}
	if sec < 1 {
		t.Errorf("Retry-After = %d, want >= 1", sec)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["code"] != "rate_limit_exceeded" {
		t.Errorf("code = %q, want %q", body["code"], "rate_limit_exceeded")
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		PredictRate:     1,
		PredictBurst:    10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// ユーザー1がバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(1))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(1))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("user 1 second request: status = %d, want 429", w.Result().StatusCode)
	}

	// ユーザー2は影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(2))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("user 2: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- PredictionMiddleware のテスト ---

func TestPredictionRateLimit_IndependentOfGeneralLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		PredictRate:     1,
		PredictBurst:    2,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	predictHandler := rl.PredictionMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// API全般のバーストを使い切る
	w := httptest.NewRecorder()
	generalHandler.ServeHTTP(w, limitedRequest(5))
	w = httptest.NewRecorder()
	generalHandler.ServeHTTP(w, limitedRequest(5))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("general second request: status = %d, want 429", w.Result().StatusCode)
	}

	// 予測実行リミッターは独立なのでまだ通る
	w = httptest.NewRecorder()
	predictHandler.ServeHTTP(w, limitedRequest(5))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("predict: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestPredictionRateLimit_Returns429WhenExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     10,
		GeneralBurst:    100,
		PredictRate:     1,
		PredictBurst:    1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.PredictionMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(9))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, limitedRequest(9))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		PredictRate:     1,
		PredictBurst:    1,
		CleanupInterval: 10 * time.Millisecond,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter(1)
	rl.getOrCreatePredictLimiter(1)

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("general limiter count = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.PredictLimiterCount() != 1 {
		t.Fatalf("predict limiter count = %d, want 1", rl.PredictLimiterCount())
	}

	// TTL（CleanupInterval * 2）を超えるまで待ってクリーンアップを確認
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 && rl.PredictLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("stale entries not cleaned up: general=%d predict=%d",
		rl.GeneralLimiterCount(), rl.PredictLimiterCount())
}

func TestDefaultRateLimiterConfig_MatchesPolicy(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 {
		t.Errorf("general burst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.PredictBurst != 30 {
		t.Errorf("predict burst = %d, want 30", cfg.PredictBurst)
	}
	if cfg.GeneralRate != 2 {
		t.Errorf("general rate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.PredictRate != 0.5 {
		t.Errorf("predict rate = %v, want 0.5", cfg.PredictRate)
	}
}
