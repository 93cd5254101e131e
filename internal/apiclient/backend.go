package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
)

// dateLayout はバックエンドの日付形式。
const dateLayout = "2006-01-02"

// BackendAPI はコアバックエンド（旅程・訪問地・ユーザー）のクライアント。
type BackendAPI struct {
	client *Client
}

// NewBackendAPI はBackendAPIを生成する。
func NewBackendAPI(client *Client) *BackendAPI {
	return &BackendAPI{client: client}
}

// ListItineraries はサインイン中のユーザーの旅程一覧を取得する。
func (a *BackendAPI) ListItineraries(ctx context.Context) ([]model.Itinerary, error) {
	var out []model.Itinerary
	if err := a.client.doJSON(ctx, http.MethodGet, "/itinerary/get", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateItinerary は旅程を作成する。IDはサーバーが採番する。
func (a *BackendAPI) CreateItinerary(ctx context.Context, it model.Itinerary) error {
	it.ID = 0
	return a.client.doJSON(ctx, http.MethodPost, "/itinerary/create", nil, it, nil)
}

// ListLocations は旅程の訪問地一覧を取得する。
func (a *BackendAPI) ListLocations(ctx context.Context, itineraryID int64) ([]model.Location, error) {
	var out []model.Location
	if err := a.client.doJSON(ctx, http.MethodGet, "/location/itinerary/"+pathID(itineraryID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLocation は画像付きで訪問地を追加する。
func (a *BackendAPI) CreateLocation(ctx context.Context, in model.NewLocation) (*model.Location, error) {
	fields := map[string]string{}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Description != "" {
		fields["description"] = in.Description
	}
	if in.FromDate != nil {
		fields["fromDate"] = formatDate(*in.FromDate)
	}
	if in.ToDate != nil {
		fields["toDate"] = formatDate(*in.ToDate)
	}

	files := make([]formFile, 0, len(in.Files))
	for _, f := range in.Files {
		files = append(files, formFile{field: "files", file: f})
	}

	var out model.Location
	if err := a.client.doMultipart(ctx, http.MethodPost, "/location/itinerary/"+pathID(in.ItineraryID), fields, files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLocation は訪問地を取得する。
func (a *BackendAPI) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	var out model.Location
	if err := a.client.doJSON(ctx, http.MethodGet, "/location/"+pathID(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLocation は訪問地を削除する。
func (a *BackendAPI) DeleteLocation(ctx context.Context, id int64) error {
	return a.client.doJSON(ctx, http.MethodDelete, "/location/"+pathID(id), nil, nil, nil)
}

// UploadLocationImages は訪問地に画像を追加し、追加された画像URLを返す。
func (a *BackendAPI) UploadLocationImages(ctx context.Context, id int64, images []model.UploadFile) ([]string, error) {
	files := make([]formFile, 0, len(images))
	for _, f := range images {
		files = append(files, formFile{field: "files", file: f})
	}

	var out struct {
		ImageURLs []string `json:"imageUrls"`
	}
	if err := a.client.doMultipart(ctx, http.MethodPost, "/location/"+pathID(id)+"/images", nil, files, &out); err != nil {
		return nil, err
	}
	return out.ImageURLs, nil
}

// DeleteLocationImage は訪問地から画像を削除する。
func (a *BackendAPI) DeleteLocationImage(ctx context.Context, id int64, imageURL string) error {
	query := url.Values{"imageUrl": {imageURL}}
	return a.client.doJSON(ctx, http.MethodDelete, "/location/"+pathID(id)+"/images", query, nil, nil)
}

// RegisterUser はバックエンドにユーザーを登録する。
func (a *BackendAPI) RegisterUser(ctx context.Context, user model.BackendUser) error {
	return a.client.doJSON(ctx, http.MethodPost, "/user/register", nil, user, nil)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
