package watch

import (
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
)

// CycleResult はエラーに基づく監視サイクル結果の分類。
type CycleResult int

const (
	// CycleResultOK は取得成功。
	CycleResultOK CycleResult = iota
	// CycleResultSkip は次回の通常サイクルで再試行するエラー（401/403/404など）。
	CycleResultSkip
	// CycleResultBackoff はバックオフが必要なエラー（429/5xx/通信エラー）。
	CycleResultBackoff
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延（1時間）。
	maxBackoff = time.Hour
)

// ClassifyError はサイクルのエラーを結果に分類する。
func ClassifyError(err error) CycleResult {
	if err == nil {
		return CycleResultOK
	}

	var statusErr *model.StatusError
	if !errors.As(err, &statusErr) {
		return CycleResultBackoff
	}

	switch code := statusErr.StatusCode; {
	case code == http.StatusTooManyRequests:
		return CycleResultBackoff
	case code >= 500:
		return CycleResultBackoff
	default:
		return CycleResultSkip
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
