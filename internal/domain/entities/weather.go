package entities

// CurrentWeather is the current-conditions slice of a forecast response.
type CurrentWeather struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection int     `json:"windDirection"`
	WeatherCode   int     `json:"weatherCode"`
	IsDay         bool    `json:"isDay"`
	ObservedAt    string  `json:"observedAt"`
}

// HourlyForecast carries parallel per-hour series, upstream order preserved.
type HourlyForecast struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Times       []string  `json:"times"`
	Temperature []float64 `json:"temperature"`
	Humidity    []int     `json:"humidity"`
	WeatherCode []int     `json:"weatherCode"`
}

// DailyForecast carries parallel per-day series.
type DailyForecast struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Dates          []string  `json:"dates"`
	TemperatureMax []float64 `json:"temperatureMax"`
	TemperatureMin []float64 `json:"temperatureMin"`
	WeatherCode    []int     `json:"weatherCode"`
	Sunrise        []string  `json:"sunrise"`
	Sunset         []string  `json:"sunset"`
}

// Location is one geocoding result.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BackgroundImage is one background-image lookup result.
type BackgroundImage struct {
	URL         string `json:"url"`
	ThumbURL    string `json:"thumbUrl"`
	Description string `json:"description,omitempty"`
	Credit      string `json:"credit,omitempty"`
}
