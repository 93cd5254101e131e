// Package repository はローカル永続ストレージのインターフェースと実装を提供する。
// 値は文字列のまま保存し、バージョン管理は行わない。
package repository

import (
	"context"
)

// KeyValueRepository はキーと文字列値の永続化インターフェース。
type KeyValueRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はfalseを返す。
	Get(ctx context.Context, key string) (string, bool, error)

	// Set は指定キーに値を保存する。既存の値は上書きする。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
