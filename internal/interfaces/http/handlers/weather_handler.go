package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	domainerrors "skycast.backend/internal/domain/errors"
	"skycast.backend/internal/interfaces/http/response"
	"skycast.backend/internal/usecases"
)

// WeatherHandler serves forecast, geocoding, and background image reads.
type WeatherHandler struct {
	weatherUsecase *usecases.WeatherUsecase
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(weatherUsecase *usecases.WeatherUsecase) *WeatherHandler {
	return &WeatherHandler{
		weatherUsecase: weatherUsecase,
	}
}

// Current returns current conditions
// GET /api/v1/weather/current?lat=..&lon=..
func (h *WeatherHandler) Current(c *gin.Context) {
	lat, lon, ok := parseCoordinates(c)
	if !ok {
		return
	}

	current, err := h.weatherUsecase.Current(c.Request.Context(), lat, lon)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, current)
}

// Hourly returns the hourly forecast
// GET /api/v1/weather/hourly?lat=..&lon=..
func (h *WeatherHandler) Hourly(c *gin.Context) {
	lat, lon, ok := parseCoordinates(c)
	if !ok {
		return
	}

	forecast, err := h.weatherUsecase.Hourly(c.Request.Context(), lat, lon)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, forecast)
}

// Daily returns the daily forecast
// GET /api/v1/weather/daily?lat=..&lon=..
func (h *WeatherHandler) Daily(c *gin.Context) {
	lat, lon, ok := parseCoordinates(c)
	if !ok {
		return
	}

	forecast, err := h.weatherUsecase.Daily(c.Request.Context(), lat, lon)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, forecast)
}

// Geocode resolves a place query to candidate locations
// GET /api/v1/weather/geocode?q=..&limit=..
func (h *WeatherHandler) Geocode(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Error(c, domainerrors.BadRequest("q is required"))
		return
	}

	limit := 5
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 20 {
			response.Error(c, domainerrors.BadRequest("limit must be between 1 and 20"))
			return
		}
		limit = parsed
	}

	locations, err := h.weatherUsecase.Geocode(c.Request.Context(), query, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, locations)
}

// BackgroundImage finds a backdrop matching a condition query
// GET /api/v1/images/background?query=..
func (h *WeatherHandler) BackgroundImage(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		response.Error(c, domainerrors.BadRequest("query is required"))
		return
	}

	image, err := h.weatherUsecase.BackgroundImage(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, image)
}

func parseCoordinates(c *gin.Context) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		response.Error(c, domainerrors.BadRequest("lat must be a number between -90 and 90"))
		return 0, 0, false
	}

	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		response.Error(c, domainerrors.BadRequest("lon must be a number between -180 and 180"))
		return 0, 0, false
	}
	return lat, lon, true
}
