// Package storage は永続ストレージ上の有効期限付き値と、
// アプリケーションが使用する固定キーを提供する。
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tripplanner/internal/repository"
)

// 永続ストレージの固定キー。
const (
	// AuthKey は認証レコード {token, user, exp} を保存するキー。
	AuthKey = "auth"
	// TravelWarningsPrefsKey は旅程ごとの渡航警告有効フラグを保存するキー。
	TravelWarningsPrefsKey = "travelWarningsEnabled"
)

// ttlItem は有効期限付きで保存される値の形式。expはUnixミリ秒。
type ttlItem struct {
	Value json.RawMessage `json:"value"`
	Exp   int64           `json:"exp"`
}

// TTLStore はリポジトリ上に有効期限付きの値を保存する。
// 期限切れの値は読み出し時に削除される（能動的な掃除は行わない）。
type TTLStore struct {
	repo repository.KeyValueRepository
	now  func() time.Time
}

// NewTTLStore はTTLStoreを生成する。
func NewTTLStore(repo repository.KeyValueRepository) *TTLStore {
	return &TTLStore{repo: repo, now: time.Now}
}

// WithClock は時刻取得関数を差し替えたTTLStoreを返す。
func (s *TTLStore) WithClock(now func() time.Time) *TTLStore {
	return &TTLStore{repo: s.repo, now: now}
}

// Repository は下層のリポジトリを返す。
func (s *TTLStore) Repository() repository.KeyValueRepository {
	return s.repo
}

// SetWithExpiry はvalueをJSONにエンコードし、現在時刻+ttlを期限として保存する。
func (s *TTLStore) SetWithExpiry(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}

	data, err := json.Marshal(ttlItem{
		Value: raw,
		Exp:   s.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode ttl item for %s: %w", key, err)
	}

	return s.repo.Set(ctx, key, string(data))
}

// GetWithExpiry は保存された値をdstにデコードする。
// 値が存在しない、期限切れ、または壊れている場合はfalseを返す。
// 期限切れと壊れた値はその場で削除する。
func (s *TTLStore) GetWithExpiry(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || raw == "" {
		return false, nil
	}

	var item ttlItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		slog.Warn("discarding corrupt stored value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false, s.repo.Delete(ctx, key)
	}

	if s.now().UnixMilli() > item.Exp {
		return false, s.repo.Delete(ctx, key)
	}

	if err := json.Unmarshal(item.Value, dst); err != nil {
		slog.Warn("discarding undecodable stored value",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false, s.repo.Delete(ctx, key)
	}

	return true, nil
}

// ExpiresAt は保存された値の期限を返す。値が存在しない場合はfalseを返す。
func (s *TTLStore) ExpiresAt(ctx context.Context, key string) (time.Time, bool, error) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	var item ttlItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(item.Exp), true, nil
}

// Remove は指定キーを削除する。
func (s *TTLStore) Remove(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}
