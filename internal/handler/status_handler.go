package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/worker/watch"
)

// SessionProvider は現在のセッションのスナップショットを返す。
type SessionProvider interface {
	Session() model.Session
}

// WarningsProvider は監視ワーカーが最後に取得した警告を返す。
type WarningsProvider interface {
	Last() watch.Snapshot
}

// StatusHandler は状態参照のHTTPハンドラー。
type StatusHandler struct {
	session  SessionProvider
	warnings WarningsProvider
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(session SessionProvider, warnings WarningsProvider) *StatusHandler {
	return &StatusHandler{
		session:  session,
		warnings: warnings,
	}
}

// sessionResponse はセッション状態のAPIレスポンス。トークンは含めない。
type sessionResponse struct {
	Initialized   bool   `json:"initialized"`
	Authenticated bool   `json:"authenticated"`
	Loading       bool   `json:"loading"`
	Error         string `json:"error,omitempty"`
	UID           string `json:"uid,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName,omitempty"`
}

// Health はヘルスチェック。
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Session はセッション状態を返す。
// GET /api/session
func (h *StatusHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	s := h.session.Session()
	resp := sessionResponse{
		Initialized:   s.Initialized,
		Authenticated: s.Authenticated(),
		Loading:       s.Loading,
		Error:         s.Error,
	}
	if s.User != nil {
		resp.UID = s.User.UID
		resp.Email = s.User.Email
		resp.EmailVerified = s.User.EmailVerified
		resp.DisplayName = s.User.DisplayName
	}
	writeJSON(w, http.StatusOK, resp)
}

// Warnings は監視ワーカーが最後に取得した渡航警告を返す。
// GET /api/warnings
func (h *StatusHandler) Warnings(w http.ResponseWriter, r *http.Request) {
	if h.warnings == nil {
		writeJSON(w, http.StatusOK, watch.Snapshot{Warnings: []model.UserWarning{}})
		return
	}
	writeJSON(w, http.StatusOK, h.warnings.Last())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
