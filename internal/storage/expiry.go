package storage

import (
	"sync"
	"time"
)

// ExpiryTimer は期限到達時に1回だけコールバックを実行するタイマー。
// Scheduleのたびに保留中のタイマーは取り消される。
type ExpiryTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	now   func() time.Time
}

// NewExpiryTimer はExpiryTimerを生成する。
func NewExpiryTimer() *ExpiryTimer {
	return &ExpiryTimer{now: time.Now}
}

// Schedule はexpに達した時点でfnを実行するようタイマーを設定する。
// expが過去の場合は即座に（別goroutineで）実行する。
func (t *ExpiryTimer) Schedule(exp time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen

	delay := exp.Sub(t.now())
	if delay < 0 {
		delay = 0
	}

	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		current := t.gen == gen
		if current {
			t.timer = nil
		}
		t.mu.Unlock()

		// 取り消し後に発火したタイマーは無視する
		if current {
			fn()
		}
	})
}

// Cancel は保留中のタイマーを取り消す。
func (t *ExpiryTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Pending はタイマーが保留中かを返す。
func (t *ExpiryTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
