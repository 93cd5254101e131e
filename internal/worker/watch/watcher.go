// Package watch はサインイン中のユーザーの渡航警告を定期的に取得する監視ワーカーを提供する。
// 前回までに見ていない警告を検出してログとメトリクスに記録する。
package watch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/tripplanner/internal/metrics"
	"github.com/hitoshi/tripplanner/internal/model"
)

// WarningSource はユーザーの旅行に該当する渡航警告を取得する。
type WarningSource interface {
	FetchUserWarnings(ctx context.Context, email string) ([]model.UserWarning, error)
}

// IdentitySource はサインイン中のユーザーのメールアドレスを返す。未サインインの場合は空文字列。
type IdentitySource interface {
	Email() string
}

// Snapshot は最後に取得した警告の状態。
type Snapshot struct {
	Email     string              `json:"email,omitempty"`
	Warnings  []model.UserWarning `json:"warnings"`
	NewCount  int                 `json:"newCount"`
	CheckedAt time.Time           `json:"checkedAt,omitempty"`
}

// Watcher はユーザーの渡航警告を定期的に取得する。
type Watcher struct {
	source    WarningSource
	identity  IdentitySource
	collector metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time

	mu                sync.RWMutex
	email             string
	seen              map[string]struct{}
	last              Snapshot
	consecutiveErrors int
	nextRunAt         time.Time
}

// NewWatcher はWatcherの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewWatcher(source WarningSource, identity IdentitySource, collector metrics.MetricsCollector, logger *slog.Logger) *Watcher {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Watcher{
		source:    source,
		identity:  identity,
		collector: collector,
		logger:    logger,
		now:       time.Now,
		seen:      map[string]struct{}{},
		last:      Snapshot{Warnings: []model.UserWarning{}},
	}
}

// Start は指定間隔のティッカーで監視を開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("渡航警告の監視を開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("渡航警告の監視を停止しました")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Watcher) runCycle(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("渡航警告の監視サイクルに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は1回分の監視を行い、新しく検出した警告を記録する。
// 未サインインの場合とバックオフ中は何もしない。
func (w *Watcher) RunOnce(ctx context.Context) error {
	email := w.identity.Email()
	if email == "" {
		w.reset("")
		w.logger.Debug("未サインインのため渡航警告の監視をスキップします")
		return nil
	}

	now := w.now()
	w.mu.Lock()
	if email != w.email {
		// 別のユーザーに切り替わった場合は既読状態を引き継がない
		w.resetLocked(email)
	}
	if now.Before(w.nextRunAt) {
		w.mu.Unlock()
		w.logger.Debug("バックオフ中のため渡航警告の監視をスキップします",
			slog.Time("next_run_at", w.nextRunAt),
		)
		return nil
	}
	w.mu.Unlock()

	warnings, err := w.source.FetchUserWarnings(ctx, email)
	if err != nil {
		w.applyFailure(now, err)
		return err
	}

	newCount := w.applySuccess(email, warnings, now)
	if newCount > 0 {
		w.collector.RecordNewWarnings(newCount)
		w.logger.Info("新しい渡航警告を検出しました",
			slog.String("email", email),
			slog.Int("new_count", newCount),
		)
	}
	return nil
}

// Last は最後に取得した警告のスナップショットを返す。
func (w *Watcher) Last() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := w.last
	snap.Warnings = slices.Clone(w.last.Warnings)
	if snap.Warnings == nil {
		snap.Warnings = []model.UserWarning{}
	}
	return snap
}

func (w *Watcher) applySuccess(email string, warnings []model.UserWarning, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	newCount := 0
	for _, uw := range warnings {
		key := warningKey(uw)
		if _, ok := w.seen[key]; ok {
			continue
		}
		w.seen[key] = struct{}{}
		newCount++
	}

	w.consecutiveErrors = 0
	w.nextRunAt = time.Time{}
	w.last = Snapshot{
		Email:     email,
		Warnings:  slices.Clone(warnings),
		NewCount:  newCount,
		CheckedAt: now,
	}
	if w.last.Warnings == nil {
		w.last.Warnings = []model.UserWarning{}
	}
	return newCount
}

func (w *Watcher) applyFailure(now time.Time, err error) {
	if ClassifyError(err) != CycleResultBackoff {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.consecutiveErrors++
	delay := CalculateBackoff(w.consecutiveErrors - 1)
	w.nextRunAt = now.Add(delay)

	w.logger.Warn("渡航警告の取得をバックオフします",
		slog.Int("consecutive_errors", w.consecutiveErrors),
		slog.Duration("delay", delay),
	)
}

func (w *Watcher) reset(email string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked(email)
}

func (w *Watcher) resetLocked(email string) {
	w.email = email
	w.seen = map[string]struct{}{}
	w.last = Snapshot{Email: email, Warnings: []model.UserWarning{}}
	w.consecutiveErrors = 0
	w.nextRunAt = time.Time{}
}

// warningKey は警告の同一性キー（コンテンツIDと国コード）を返す。
func warningKey(uw model.UserWarning) string {
	country := uw.CountryCode
	contentID := ""
	if uw.Warning != nil {
		contentID = uw.Warning.ContentID
		if country == "" {
			country = uw.Warning.CountryCode
		}
	}
	return contentID + "|" + country
}
