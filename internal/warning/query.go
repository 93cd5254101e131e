package warning

import "github.com/hitoshi/tripplanner/internal/model"

// ByCountryCode は国コードが一致する最初の警告を返す。
func ByCountryCode(warnings []model.Warning, countryCode string) (model.Warning, bool) {
	for _, w := range warnings {
		if w.CountryCode == countryCode {
			return w, true
		}
	}
	return model.Warning{}, false
}

// ByContentID はコンテンツIDが一致する最初の警告を返す。
func ByContentID(warnings []model.Warning, contentID string) (model.Warning, bool) {
	for _, w := range warnings {
		if w.ContentID == contentID {
			return w, true
		}
	}
	return model.Warning{}, false
}

// Active は有効な警告のみを返す。
func Active(warnings []model.Warning) []model.Warning {
	out := []model.Warning{}
	for _, w := range warnings {
		if w.Active {
			out = append(out, w)
		}
	}
	return out
}

// ByLevel は警告レベルが一致する警告を返す。
func ByLevel(warnings []model.Warning, level string) []model.Warning {
	out := []model.Warning{}
	for _, w := range warnings {
		if w.WarningLevel == level {
			out = append(out, w)
		}
	}
	return out
}
