package model

// WeatherForecast は天気予報サービスが保存している地点ごとの予報。
type WeatherForecast struct {
	ID          int64           `json:"id,omitempty"`
	Location    string          `json:"location"`
	Latitude    float64         `json:"latitude,omitempty"`
	Longitude   float64         `json:"longitude,omitempty"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
	Timezone    string          `json:"timezone,omitempty"`
	Daily       []DailyForecast `json:"dailyForecasts,omitempty"`
}

// DailyForecast は1日分の予報。
type DailyForecast struct {
	Date                     string  `json:"date"`
	TemperatureMax           float64 `json:"temperatureMax,omitempty"`
	TemperatureMin           float64 `json:"temperatureMin,omitempty"`
	PrecipitationSum         float64 `json:"precipitationSum,omitempty"`
	WeatherCode              int     `json:"weatherCode,omitempty"`
	WeatherDescription       string  `json:"weatherDescription,omitempty"`
	PrecipitationProbability int     `json:"precipitationProbabilityMax,omitempty"`
}

// Coordinates は天気予報取得の入力となる地点。
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Location  string
}
