// Package user はバックエンドへのユーザー登録を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
)

// ErrInvalidUser は登録に必要な項目が欠けている場合のエラー。
var ErrInvalidUser = errors.New("user id and email are required")

// API はユーザー登録API。
type API interface {
	RegisterUser(ctx context.Context, user model.BackendUser) error
}

// Service はバックエンドに登録したユーザーを保持する。
type Service struct {
	api API

	mu      sync.RWMutex
	current *model.BackendUser
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api API) *Service {
	return &Service{api: api}
}

// Register はユーザーをバックエンドに登録する。
// 登録に成功した場合のみ現在のユーザーとして保持する。
func (s *Service) Register(ctx context.Context, user model.BackendUser) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(user.Email)
	if user.ID == "" || user.Email == "" {
		return ErrInvalidUser
	}

	if err := s.api.RegisterUser(ctx, user); err != nil {
		return fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)
	return nil
}

// RegisterIdentity はIdPのアカウント情報からユーザーを登録する。
// 表示名が無い場合はメールアドレスのローカル部を名前とする。
func (s *Service) RegisterIdentity(ctx context.Context, identity *model.Identity) error {
	if identity == nil {
		return model.ErrNotAuthenticated
	}

	name := identity.DisplayName
	if name == "" {
		name, _, _ = strings.Cut(identity.Email, "@")
	}

	return s.Register(ctx, model.BackendUser{
		ID:    identity.UID,
		Name:  name,
		Email: identity.Email,
	})
}

// Current は最後に登録したユーザーを返す。未登録の場合はnil。
func (s *Service) Current() *model.BackendUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}
