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

// ImageClient looks up background images for a weather condition.
type ImageClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewImageClient creates a background image client
func NewImageClient(baseURL, apiKey string, timeout time.Duration) *ImageClient {
	return &ImageClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type imageSearchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
			Thumb   string `json:"thumb"`
		} `json:"urls"`
		Description string `json:"description"`
		User        struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// Search finds a background image for a query like "rainy city"
func (c *ImageClient) Search(ctx context.Context, query string) (*entities.BackgroundImage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image upstream unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image upstream returned status %d", resp.StatusCode)
	}

	var decoded imageSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Results) == 0 {
		return nil, fmt.Errorf("no image found for query %q", query)
	}

	first := decoded.Results[0]
	return &entities.BackgroundImage{
		URL:         first.URLs.Regular,
		ThumbURL:    first.URLs.Thumb,
		Description: first.Description,
		Credit:      first.User.Name,
	}, nil
}
