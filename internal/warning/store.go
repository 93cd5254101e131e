// Package warning は国別の渡航警告のクライアント側ストアを提供する。
package warning

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
)

// API は渡航警告ストアが利用する渡航警告サービスのAPI。
type API interface {
	ListWarnings(ctx context.Context, activeOnly bool) ([]model.Warning, error)
	WarningByCountry(ctx context.Context, countryCode string) (*model.Warning, error)
	DetailedWarning(ctx context.Context, countryCode string) (*model.DetailedWarning, error)
	WarningByContentID(ctx context.Context, contentID string) (*model.Warning, error)
	BatchWarnings(ctx context.Context, countryCodes []string) ([]model.Warning, error)
	RefreshWarnings(ctx context.Context) error
}

// State は渡航警告ストアのスナップショット。
type State struct {
	Warnings []model.Warning
	Current  *model.Warning
	Detailed *model.DetailedWarning
	Batch    []model.Warning
	Loading  bool
	Error    string
}

// Store は正規化済みの渡航警告を保持する。
type Store struct {
	api       API
	sanitizer Sanitizer

	mu       sync.Mutex
	warnings []model.Warning
	current  *model.Warning
	detailed *model.DetailedWarning
	batch    []model.Warning
	loading  bool
	err      string
}

// NewStore はStoreを生成する。sanitizerがnilの場合は本文を加工しない。
func NewStore(api API, sanitizer Sanitizer) *Store {
	return &Store{api: api, sanitizer: sanitizer}
}

// FetchAll は渡航警告の一覧を取得してストアを置き換える。
// 404は空の一覧として扱い、その他のエラーでは既存の一覧を保持する。
func (s *Store) FetchAll(ctx context.Context, activeOnly bool) ([]model.Warning, error) {
	s.begin()
	out, err := s.fetchAll(ctx, activeOnly)
	s.finish(err)
	return out, err
}

func (s *Store) fetchAll(ctx context.Context, activeOnly bool) ([]model.Warning, error) {
	warnings, err := s.api.ListWarnings(ctx, activeOnly)
	if err != nil {
		if model.IsNotFound(err) {
			s.mu.Lock()
			s.warnings = []model.Warning{}
			s.mu.Unlock()
			return []model.Warning{}, nil
		}
		slog.Error("failed to fetch travel warnings", slog.String("error", err.Error()))
		return nil, err
	}

	normalized := make([]model.Warning, 0, len(warnings))
	for _, w := range warnings {
		normalized = append(normalized, Normalize(w, s.sanitizer))
	}

	s.mu.Lock()
	s.warnings = normalized
	s.mu.Unlock()
	return slices.Clone(normalized), nil
}

// FetchByCountry は国コードの渡航警告を取得して一覧に反映する。404の場合はnilを返す。
func (s *Store) FetchByCountry(ctx context.Context, countryCode string) (*model.Warning, error) {
	s.begin()

	w, err := s.api.WarningByCountry(ctx, countryCode)
	if err != nil {
		s.finish(err)
		if model.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	normalized := Normalize(*w, s.sanitizer)
	s.mu.Lock()
	s.setCurrentLocked(normalized, func(existing model.Warning) bool {
		return existing.CountryCode == countryCode
	})
	s.mu.Unlock()
	s.finish(nil)
	return &normalized, nil
}

// FetchByContentID はコンテンツIDの渡航警告を取得して一覧に反映する。404の場合はnilを返す。
func (s *Store) FetchByContentID(ctx context.Context, contentID string) (*model.Warning, error) {
	s.begin()

	w, err := s.api.WarningByContentID(ctx, contentID)
	if err != nil {
		s.finish(err)
		if model.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	normalized := Normalize(*w, s.sanitizer)
	s.mu.Lock()
	s.setCurrentLocked(normalized, func(existing model.Warning) bool {
		return existing.ContentID == contentID
	})
	s.mu.Unlock()
	s.finish(nil)
	return &normalized, nil
}

// FetchDetailed はカテゴリ別本文付きの渡航警告を取得する。404の場合はnilを返す。
func (s *Store) FetchDetailed(ctx context.Context, countryCode string) (*model.DetailedWarning, error) {
	s.begin()

	d, err := s.api.DetailedWarning(ctx, countryCode)
	if err != nil {
		s.finish(err)
		if model.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	normalized := NormalizeDetailed(*d, s.sanitizer)
	s.mu.Lock()
	s.detailed = &normalized
	s.mu.Unlock()
	s.finish(nil)
	return &normalized, nil
}

// FetchBatch は複数国の渡航警告を取得し、国コードまたはコンテンツIDで一覧にマージする。
func (s *Store) FetchBatch(ctx context.Context, countryCodes []string) ([]model.Warning, error) {
	s.begin()

	warnings, err := s.api.BatchWarnings(ctx, countryCodes)
	if err != nil {
		s.finish(err)
		return nil, err
	}

	batch := make([]model.Warning, 0, len(warnings))
	for _, w := range warnings {
		batch = append(batch, Normalize(w, s.sanitizer))
	}

	s.mu.Lock()
	s.batch = batch
	for _, w := range batch {
		s.mergeLocked(w, func(existing model.Warning) bool {
			return sameWarning(existing, w)
		})
	}
	s.mu.Unlock()
	s.finish(nil)
	return slices.Clone(batch), nil
}

// Refresh はサービス側の渡航警告データを更新させ、全件を再取得する。
func (s *Store) Refresh(ctx context.Context) error {
	s.begin()

	if err := s.api.RefreshWarnings(ctx); err != nil {
		s.finish(err)
		return err
	}
	_, err := s.fetchAll(ctx, false)
	s.finish(err)
	if err == nil {
		slog.Info("travel warnings refreshed")
	}
	return err
}

// ClearCurrent は選択中の警告と詳細を解除する。
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.detailed = nil
}

// ClearAll は全ての状態を初期化する。
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = nil
	s.current = nil
	s.detailed = nil
	s.batch = nil
	s.err = ""
}

// Warnings は現在の一覧のコピーを返す。
func (s *Store) Warnings() []model.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.warnings)
}

// Snapshot はストアのスナップショットを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Warnings: slices.Clone(s.warnings),
		Batch:    slices.Clone(s.batch),
		Loading:  s.loading,
		Error:    s.err,
	}
	if s.current != nil {
		current := *s.current
		st.Current = &current
	}
	if s.detailed != nil {
		detailed := *s.detailed
		st.Detailed = &detailed
	}
	return st
}

func (s *Store) setCurrentLocked(w model.Warning, match func(model.Warning) bool) {
	current := w
	s.current = &current
	s.mergeLocked(w, match)
}

func (s *Store) mergeLocked(w model.Warning, match func(model.Warning) bool) {
	if i := slices.IndexFunc(s.warnings, match); i >= 0 {
		s.warnings[i] = w
		return
	}
	s.warnings = append(s.warnings, w)
}

// sameWarning は国コードまたはコンテンツIDが一致するかを返す。空の値同士は一致とみなさない。
func sameWarning(a, b model.Warning) bool {
	if a.CountryCode != "" && a.CountryCode == b.CountryCode {
		return true
	}
	return a.ContentID != "" && a.ContentID == b.ContentID
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) finish(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
}
