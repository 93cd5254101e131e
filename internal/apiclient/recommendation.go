package apiclient

import (
	"context"
	"net/http"

	"github.com/hitoshi/tripplanner/internal/model"
)

// RecommendationAPI はレコメンドサービスのクライアント。
type RecommendationAPI struct {
	client *Client
}

// NewRecommendationAPI はRecommendationAPIを生成する。
func NewRecommendationAPI(client *Client) *RecommendationAPI {
	return &RecommendationAPI{client: client}
}

// RecordItineraryEvent は旅程イベントをグラフに記録する。
func (a *RecommendationAPI) RecordItineraryEvent(ctx context.Context, event model.ItineraryEvent) error {
	if event.LocationNames == nil {
		event.LocationNames = []string{}
	}
	return a.client.doJSON(ctx, http.MethodPost, "/graph/itineraries", nil, event, nil)
}
