package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hitoshi/tripplanner/internal/repository"
	"github.com/hitoshi/tripplanner/internal/storage"
)

// Preferences は旅程IDごとの渡航警告の有効/無効を保持する。
// 保存形式は旅程IDを文字列キーとするJSONオブジェクト（例: {"7":true}）。
type Preferences struct {
	repo repository.KeyValueRepository

	mu      sync.RWMutex
	enabled map[int64]bool
}

// NewPreferences はPreferencesを生成する。
func NewPreferences(repo repository.KeyValueRepository) *Preferences {
	return &Preferences{repo: repo, enabled: map[int64]bool{}}
}

// Load は保存済みの設定を読み込む。
// 値が無い場合は現在の設定を維持し、読み込みや解析に失敗した場合はログのみ出力する。
func (p *Preferences) Load(ctx context.Context) {
	raw, ok, err := p.repo.Get(ctx, storage.TravelWarningsPrefsKey)
	if err != nil {
		slog.Error("failed to load travel warnings preferences", slog.String("error", err.Error()))
		return
	}
	if !ok || raw == "" {
		return
	}

	var data map[string]bool
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Error("failed to parse travel warnings preferences", slog.String("error", err.Error()))
		return
	}

	enabled := make(map[int64]bool, len(data))
	for k, v := range data {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		enabled[id] = v
	}

	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// Save は現在の設定を保存する。
func (p *Preferences) Save(ctx context.Context) error {
	p.mu.RLock()
	data := make(map[string]bool, len(p.enabled))
	for id, v := range p.enabled {
		data[strconv.FormatInt(id, 10)] = v
	}
	p.mu.RUnlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode travel warnings preferences: %w", err)
	}
	if err := p.repo.Set(ctx, storage.TravelWarningsPrefsKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save travel warnings preferences: %w", err)
	}
	return nil
}

// Set は旅程の設定を更新する。保存はSaveで行う。
func (p *Preferences) Set(itineraryID int64, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled[itineraryID] = enabled
}

// Enabled は旅程の渡航警告が有効かを返す。未設定の場合はfalse。
func (p *Preferences) Enabled(itineraryID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled[itineraryID]
}
