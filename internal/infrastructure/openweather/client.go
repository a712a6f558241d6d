// Package openweather fetches current conditions from the OpenWeatherMap API.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/weather-notify/internal/domain"
)

var (
	errNoAPIKey    = errors.New("openweather api key is not configured")
	errNoCondition = errors.New("openweather response has no weather conditions")
)

// Client implements the sweep's weather provider. It performs a single request
// per call; a circuit breaker makes a failing API fail fast for the rest of a sweep.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

type currentResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Current returns the present conditions for a free-text location ("Colombo", "Kandy, Central").
func (c *Client) Current(ctx context.Context, location string) (domain.Conditions, error) {
	if c.apiKey == "" {
		return domain.Conditions{}, errNoAPIKey
	}
	if location == "" {
		return domain.Conditions{}, fmt.Errorf("empty location: %w", domain.ErrBadRequest)
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx, location)
	})
	if err != nil {
		return domain.Conditions{}, fmt.Errorf("openweather %q: %w", location, err)
	}
	payload := result.(*currentResponse)
	if len(payload.Weather) == 0 {
		return domain.Conditions{}, fmt.Errorf("openweather %q: %w", location, errNoCondition)
	}
	return domain.Conditions{
		Location:     location,
		Description:  payload.Weather[0].Description,
		TemperatureC: payload.Main.Temp,
	}, nil
}

func (c *Client) fetch(ctx context.Context, location string) (*currentResponse, error) {
	values := url.Values{}
	values.Set("q", location)
	values.Set("units", "metric")
	values.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}
