package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Trip は渡航警告サービスに登録された旅行（購読）を表す。
// 国・期間ごとに渡航警告の通知を受け取る単位となる。
type Trip struct {
	ID                   int64  `json:"id,omitempty"`
	Email                string `json:"email"`
	CountryCode          string `json:"countryCode"`
	CountryName          string `json:"countryName,omitempty"`
	StartDate            string `json:"startDate,omitempty"`
	EndDate              string `json:"endDate,omitempty"`
	TripName             string `json:"tripName,omitempty"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// TripKey は同一購読とみなす組み合わせ（国コード・開始日・終了日）。
type TripKey struct {
	CountryCode string
	StartDate   string
	EndDate     string
}

// Key は旅行の同一性キーを返す。
func (t Trip) Key() TripKey {
	return TripKey{CountryCode: t.CountryCode, StartDate: t.StartDate, EndDate: t.EndDate}
}

// Warning は国別の渡航警告を表す。
type Warning struct {
	ContentID       string    `json:"contentId,omitempty"`
	CountryCode     string    `json:"countryCode,omitempty"`
	CountryName     string    `json:"countryName,omitempty"`
	Title           string    `json:"title,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	LastModified    FlexValue `json:"lastModified,omitempty"`
	Effective       FlexValue `json:"effective,omitempty"`
	Situation       string    `json:"situation,omitempty"`
	WarningLevel    string    `json:"warningLevel,omitempty"`
	Level           string    `json:"level,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	SeverityDisplay string    `json:"severityDisplay,omitempty"`
	Active          bool      `json:"active,omitempty"`
}

// DetailedWarning はカテゴリ別本文を含む渡航警告の詳細。
type DetailedWarning struct {
	Warning            *Warning            `json:"warning,omitempty"`
	CategorizedContent map[string][]string `json:"categorizedContent,omitempty"`
}

// UserWarning はユーザーの旅行に該当する渡航警告。
type UserWarning struct {
	TripID      int64    `json:"tripId,omitempty"`
	TripName    string   `json:"tripName,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
	Warning     *Warning `json:"warning,omitempty"`
}

// FlexValue は文字列または数値で返されるJSON値を文字列として保持する。
// 渡航警告サービスは日時をエポック秒または文字列で返すため。
type FlexValue string

// UnmarshalJSON は文字列・数値の両方を受け付ける。
func (v *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FlexValue(n.String())
	return nil
}

// dateLayouts は旅行の日付として受け付ける形式。
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate は下流サービスの日付文字列を解釈する。
// 空文字列または解釈できない場合はfalseを返す。
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
