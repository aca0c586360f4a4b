package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/pkg/logger"
	"skycast.backend/pkg/metrics"
	"skycast.backend/pkg/redis"
)

// ForecastClient is the outbound forecast dependency.
type ForecastClient interface {
	Current(ctx context.Context, lat, lon float64) (*entities.CurrentWeather, error)
	Hourly(ctx context.Context, lat, lon float64) (*entities.HourlyForecast, error)
	Daily(ctx context.Context, lat, lon float64) (*entities.DailyForecast, error)
}

// GeocodeClient is the outbound geocoding dependency.
type GeocodeClient interface {
	Search(ctx context.Context, query string, limit int) ([]*entities.Location, error)
}

// ImageSearchClient is the outbound background image dependency.
type ImageSearchClient interface {
	Search(ctx context.Context, query string) (*entities.BackgroundImage, error)
}

// WeatherUsecase serves forecast, geocoding, and background image reads,
// with a short-TTL redis cache in front of the upstreams.
type WeatherUsecase struct {
	forecast ForecastClient
	geocoder GeocodeClient
	images   ImageSearchClient
	cacheTTL time.Duration
}

// NewWeatherUsecase creates a new weather usecase
func NewWeatherUsecase(forecast ForecastClient, geocoder GeocodeClient, images ImageSearchClient, cacheTTL time.Duration) *WeatherUsecase {
	return &WeatherUsecase{
		forecast: forecast,
		geocoder: geocoder,
		images:   images,
		cacheTTL: cacheTTL,
	}
}

// Current returns current conditions for a coordinate
func (u *WeatherUsecase) Current(ctx context.Context, lat, lon float64) (*entities.CurrentWeather, error) {
	key := fmt.Sprintf("weather:current:%.4f:%.4f", lat, lon)
	out := &entities.CurrentWeather{}
	err := cached(ctx, key, u.cacheTTL, "current", out, func() (*entities.CurrentWeather, error) {
		return u.forecast.Current(ctx, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Hourly returns the hourly forecast for a coordinate
func (u *WeatherUsecase) Hourly(ctx context.Context, lat, lon float64) (*entities.HourlyForecast, error) {
	key := fmt.Sprintf("weather:hourly:%.4f:%.4f", lat, lon)
	out := &entities.HourlyForecast{}
	err := cached(ctx, key, u.cacheTTL, "hourly", out, func() (*entities.HourlyForecast, error) {
		return u.forecast.Hourly(ctx, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Daily returns the daily forecast for a coordinate
func (u *WeatherUsecase) Daily(ctx context.Context, lat, lon float64) (*entities.DailyForecast, error) {
	key := fmt.Sprintf("weather:daily:%.4f:%.4f", lat, lon)
	out := &entities.DailyForecast{}
	err := cached(ctx, key, u.cacheTTL, "daily", out, func() (*entities.DailyForecast, error) {
		return u.forecast.Daily(ctx, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Geocode resolves a place query to candidate locations
func (u *WeatherUsecase) Geocode(ctx context.Context, query string, limit int) ([]*entities.Location, error) {
	key := fmt.Sprintf("weather:geocode:%s:%d", query, limit)
	out := []*entities.Location{}
	err := cached(ctx, key, u.cacheTTL, "geocode", &out, func() (*[]*entities.Location, error) {
		locations, err := u.geocoder.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		return &locations, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BackgroundImage finds a background image for a condition query
func (u *WeatherUsecase) BackgroundImage(ctx context.Context, query string) (*entities.BackgroundImage, error) {
	key := "weather:image:" + query
	out := &entities.BackgroundImage{}
	err := cached(ctx, key, u.cacheTTL, "image", out, func() (*entities.BackgroundImage, error) {
		return u.images.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cached fills dst from redis or, on a miss, from fetch (then stores the
// result). A cache outage degrades to a plain upstream call.
func cached[T any](ctx context.Context, key string, ttl time.Duration, kind string, dst *T, fetch func() (*T, error)) error {
	if redis.GetClient() != nil {
		raw, err := redis.Get(ctx, key)
		if err == nil {
			if err := json.Unmarshal([]byte(raw), dst); err == nil {
				metrics.UpstreamCacheHits.WithLabelValues(kind).Inc()
				return nil
			}
		} else if !redis.IsNil(err) {
			logger.Warn(ctx, "weather cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	fetched, err := fetch()
	if err != nil {
		return err
	}
	*dst = *fetched

	if redis.GetClient() != nil {
		if raw, err := json.Marshal(fetched); err == nil {
			if err := redis.Set(ctx, key, string(raw), ttl); err != nil {
				logger.Warn(ctx, "weather cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return nil
}
