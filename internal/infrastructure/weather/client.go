package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"skycast.backend/internal/domain/entities"
)

// Client fetches forecasts from an Open-Meteo compatible upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a forecast client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		FeelsLike     float64 `json:"apparent_temperature"`
		Humidity      int     `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection int     `json:"wind_direction_10m"`
		WeatherCode   int     `json:"weather_code"`
		IsDay         int     `json:"is_day"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		Humidity    []int     `json:"relative_humidity_2m"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time           []string  `json:"time"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weather_code"`
		Sunrise        []string  `json:"sunrise"`
		Sunset         []string  `json:"sunset"`
	} `json:"daily"`
}

// Current fetches current conditions for a coordinate
func (c *Client) Current(ctx context.Context, lat, lon float64) (*entities.CurrentWeather, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,wind_direction_10m,weather_code,is_day")

	var resp forecastResponse
	if err := c.getJSON(ctx, "/forecast", params, &resp); err != nil {
		return nil, err
	}

	return &entities.CurrentWeather{
		Latitude:      resp.Latitude,
		Longitude:     resp.Longitude,
		Temperature:   resp.Current.Temperature,
		FeelsLike:     resp.Current.FeelsLike,
		Humidity:      resp.Current.Humidity,
		WindSpeed:     resp.Current.WindSpeed,
		WindDirection: resp.Current.WindDirection,
		WeatherCode:   resp.Current.WeatherCode,
		IsDay:         resp.Current.IsDay == 1,
		ObservedAt:    resp.Current.Time,
	}, nil
}

// Hourly fetches the hourly series for a coordinate
func (c *Client) Hourly(ctx context.Context, lat, lon float64) (*entities.HourlyForecast, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("hourly", "temperature_2m,relative_humidity_2m,weather_code")
	params.Set("forecast_days", "2")

	var resp forecastResponse
	if err := c.getJSON(ctx, "/forecast", params, &resp); err != nil {
		return nil, err
	}

	return &entities.HourlyForecast{
		Latitude:    resp.Latitude,
		Longitude:   resp.Longitude,
		Times:       resp.Hourly.Time,
		Temperature: resp.Hourly.Temperature,
		Humidity:    resp.Hourly.Humidity,
		WeatherCode: resp.Hourly.WeatherCode,
	}, nil
}

// Daily fetches the daily series for a coordinate
func (c *Client) Daily(ctx context.Context, lat, lon float64) (*entities.DailyForecast, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code,sunrise,sunset")
	params.Set("forecast_days", "7")

	var resp forecastResponse
	if err := c.getJSON(ctx, "/forecast", params, &resp); err != nil {
		return nil, err
	}

	return &entities.DailyForecast{
		Latitude:       resp.Latitude,
		Longitude:      resp.Longitude,
		Dates:          resp.Daily.Time,
		TemperatureMax: resp.Daily.TemperatureMax,
		TemperatureMin: resp.Daily.TemperatureMin,
		WeatherCode:    resp.Daily.WeatherCode,
		Sunrise:        resp.Daily.Sunrise,
		Sunset:         resp.Daily.Sunset,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather upstream unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather upstream returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
