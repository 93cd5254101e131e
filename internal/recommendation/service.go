// Package recommendation はレコメンドサービスへの旅程イベント記録を提供する。
package recommendation

import (
	"context"
	"log/slog"

	"github.com/hitoshi/tripplanner/internal/model"
)

// API はレコメンドサービスのAPI。
type API interface {
	RecordItineraryEvent(ctx context.Context, event model.ItineraryEvent) error
}

// Service は旅程イベントをレコメンドグラフに記録する。
// 機能が無効な場合は何もしない。
type Service struct {
	api     API
	enabled bool
}

// NewService はServiceを生成する。
func NewService(api API, enabled bool) *Service {
	return &Service{api: api, enabled: enabled}
}

// Enabled はレコメンド機能が有効かを返す。
func (s *Service) Enabled() bool {
	return s.enabled
}

// RecordItineraryEvent はイベントを記録する。
func (s *Service) RecordItineraryEvent(ctx context.Context, event model.ItineraryEvent) error {
	if !s.enabled {
		return nil
	}
	if err := s.api.RecordItineraryEvent(ctx, event); err != nil {
		return err
	}
	slog.Debug("itinerary event recorded",
		slog.Int64("itinerary_id", event.ItineraryID),
		slog.String("event_type", string(event.EventType)),
	)
	return nil
}

// CreatedEvent は旅程作成イベントを組み立てる。
// 説明は短い説明を優先し、訪問地名は空のものを除く。
func CreatedEvent(it model.Itinerary, locations []model.Location) model.ItineraryEvent {
	description := it.ShortDescription
	if description == "" {
		description = it.DetailedDescription
	}

	names := []string{}
	for _, l := range locations {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}

	return model.ItineraryEvent{
		ItineraryID:   it.ID,
		Title:         it.Title,
		Description:   description,
		LocationNames: names,
		LikesCount:    0,
		EventType:     model.ItineraryEventCreated,
	}
}
