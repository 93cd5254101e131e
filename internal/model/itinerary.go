package model

import "time"

// Itinerary はバックエンドが管理する旅程を表す。
type Itinerary struct {
	ID                  int64  `json:"id,omitempty"`
	Title               string `json:"title"`
	Destination         string `json:"destination"`
	StartDate           string `json:"startDate,omitempty"`
	EndDate             string `json:"endDate,omitempty"`
	ShortDescription    string `json:"shortDescription,omitempty"`
	DetailedDescription string `json:"detailedDescription,omitempty"`
}

// Location は旅程に含まれる訪問地を表す。
// 日付はバックエンドの表現（YYYY-MM-DD）をそのまま保持する。
type Location struct {
	ID          int64    `json:"id,omitempty"`
	ItineraryID int64    `json:"itineraryId,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Latitude    float64  `json:"latitude,omitempty"`
	Longitude   float64  `json:"longitude,omitempty"`
	FromDate    string   `json:"fromDate,omitempty"`
	ToDate      string   `json:"toDate,omitempty"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
}

// HasCoordinates は緯度・経度の両方が設定されているかを返す。
// 0は未設定として扱う。
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// NewLocation は訪問地追加APIへの入力を表す。
type NewLocation struct {
	ItineraryID int64
	Name        string
	Description string
	FromDate    *time.Time
	ToDate      *time.Time
	Files       []UploadFile
}

// UploadFile はマルチパートでアップロードする画像ファイル。
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ItineraryEventType はレコメンドグラフに記録するイベント種別。
type ItineraryEventType string

const (
	// ItineraryEventCreated は旅程作成イベント。
	ItineraryEventCreated ItineraryEventType = "CREATED"
)

// ItineraryEvent はレコメンドサービスのグラフに記録するイベント。
type ItineraryEvent struct {
	ItineraryID   int64              `json:"itineraryId"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	LocationNames []string           `json:"locationNames"`
	LikesCount    int                `json:"likesCount"`
	EventType     ItineraryEventType `json:"eventType"`
}
