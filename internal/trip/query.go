package trip

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
)

// ItineraryTag は旅程から生成した旅行名に含めるタグを返す。
func ItineraryTag(itineraryID int64) string {
	return fmt.Sprintf("(Itinerary #%d)", itineraryID)
}

// NameForLocation は訪問地から生成する旅行名を返す。
func NameForLocation(locationName string, itineraryID int64) string {
	if locationName == "" {
		locationName = "Location"
	}
	return locationName + " " + ItineraryTag(itineraryID)
}

// FindByID はIDが一致する旅行を返す。
func FindByID(trips []model.Trip, id int64) (model.Trip, bool) {
	for _, t := range trips {
		if t.ID == id {
			return t, true
		}
	}
	return model.Trip{}, false
}

// FindByKey は国コード・開始日・終了日が一致する旅行を返す。
func FindByKey(trips []model.Trip, key model.TripKey) (model.Trip, bool) {
	for _, t := range trips {
		if t.Key() == key {
			return t, true
		}
	}
	return model.Trip{}, false
}

// ForItinerary は旅程から生成された旅行を返す。
func ForItinerary(trips []model.Trip, itineraryID int64) []model.Trip {
	tag := ItineraryTag(itineraryID)
	return filter(trips, func(t model.Trip) bool {
		return strings.Contains(t.TripName, tag)
	})
}

// ActiveByEmail はユーザーの終了していない旅行を返す。
func ActiveByEmail(trips []model.Trip, email string, now time.Time) []model.Trip {
	return filter(trips, func(t model.Trip) bool {
		if t.Email != email {
			return false
		}
		end, ok := model.ParseDate(t.EndDate)
		return ok && !end.Before(now)
	})
}

// Upcoming は開始前の旅行を開始日の昇順で返す。
func Upcoming(trips []model.Trip, now time.Time) []model.Trip {
	out := filter(trips, func(t model.Trip) bool {
		start, ok := model.ParseDate(t.StartDate)
		return ok && start.After(now)
	})
	slices.SortStableFunc(out, func(a, b model.Trip) int {
		sa, _ := model.ParseDate(a.StartDate)
		sb, _ := model.ParseDate(b.StartDate)
		return sa.Compare(sb)
	})
	return out
}

// InProgress は旅行期間中の旅行を返す。
func InProgress(trips []model.Trip, now time.Time) []model.Trip {
	return filter(trips, func(t model.Trip) bool {
		start, okStart := model.ParseDate(t.StartDate)
		end, okEnd := model.ParseDate(t.EndDate)
		return okStart && okEnd && !start.After(now) && !end.Before(now)
	})
}

// Past は終了した旅行を終了日の新しい順で返す。
func Past(trips []model.Trip, now time.Time) []model.Trip {
	out := filter(trips, func(t model.Trip) bool {
		end, ok := model.ParseDate(t.EndDate)
		return ok && end.Before(now)
	})
	slices.SortStableFunc(out, func(a, b model.Trip) int {
		ea, _ := model.ParseDate(a.EndDate)
		eb, _ := model.ParseDate(b.EndDate)
		return eb.Compare(ea)
	})
	return out
}

// WithNotifications は通知が有効な旅行を返す。
func WithNotifications(trips []model.Trip) []model.Trip {
	return filter(trips, func(t model.Trip) bool { return t.NotificationsEnabled })
}

// ByCountry は国コードが一致する旅行を返す。
func ByCountry(trips []model.Trip, countryCode string) []model.Trip {
	return filter(trips, func(t model.Trip) bool {
		return strings.EqualFold(t.CountryCode, countryCode)
	})
}

func filter(trips []model.Trip, keep func(model.Trip) bool) []model.Trip {
	out := []model.Trip{}
	for _, t := range trips {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
