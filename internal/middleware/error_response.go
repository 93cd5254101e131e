package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tripplanner/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:    code,
		Message: message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
}

// WriteDomainError は下流サービスのエラーを分類して書き込む。
// 404と400はそのまま返し、それ以外は502として扱う。
func WriteDomainError(w http.ResponseWriter, err error) {
	switch model.ClassifyError(err) {
	case model.ErrorKindNotFound:
		WriteErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case model.ErrorKindBadRequest:
		WriteErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", model.UserMessage(err))
	case model.ErrorKindUnauthorized:
		WriteErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "session is no longer valid")
	default:
		WriteErrorResponse(w, http.StatusBadGateway, "UPSTREAM_ERROR", model.UserMessage(err))
	}
}
