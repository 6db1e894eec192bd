// Package weather fetches forecasts from the OpenWeather 5-day endpoint to
// enrich hike reminders.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const forecastURL = "https://api.openweathermap.org/data/2.5/forecast"

// The free plan serves at most five days of forecast.
const horizonDays = 5

type Client struct {
	httpClient *http.Client
	apiKey     string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Forecast is the per-day summary attached to a reminder.
type Forecast struct {
	TempMin         int
	TempMax         int
	Description     string
	RainProbability int
	// Accuracy is "high" within three days, "medium" within the horizon,
	// "unavailable" beyond it.
	Accuracy string
}

type apiResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Pop     float64 `json:"pop"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Forecast returns the summary for the given coordinates and date, or nil
// when no data covers the date.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, date time.Time) (*Forecast, error) {
	if !c.Enabled() {
		return nil, nil
	}

	daysAhead := int(time.Until(date).Hours() / 24)
	if daysAhead > horizonDays {
		return &Forecast{Description: "Forecast not available yet", Accuracy: "unavailable"}, nil
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, forecastURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather api status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	target := date.Format("2006-01-02")
	var temps []float64
	var maxPop float64
	counts := map[string]int{}
	for _, item := range payload.List {
		if time.Unix(item.Dt, 0).Format("2006-01-02") != target {
			continue
		}
		temps = append(temps, item.Main.Temp)
		if item.Pop > maxPop {
			maxPop = item.Pop
		}
		if len(item.Weather) > 0 {
			counts[item.Weather[0].Description]++
		}
	}
	if len(temps) == 0 {
		return nil, nil
	}

	minT, maxT := temps[0], temps[0]
	for _, t := range temps[1:] {
		if t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}
	description := ""
	best := 0
	for d, n := range counts {
		if n > best {
			best, description = n, d
		}
	}
	accuracy := "medium"
	if daysAhead <= 3 {
		accuracy = "high"
	}
	return &Forecast{
		TempMin:         int(minT + 0.5),
		TempMax:         int(maxT + 0.5),
		Description:     description,
		RainProbability: int(maxPop*100 + 0.5),
		Accuracy:        accuracy,
	}, nil
}

// Format renders the forecast for inclusion in a reminder message.
func (f *Forecast) Format() string {
	if f == nil {
		return "⚠️ _Weather forecast not available_"
	}
	if f.Accuracy == "unavailable" {
		return "🌡 *Weather Forecast*:\n_Forecast not available yet. Check again 5 days before the hike_"
	}
	label := "Medium"
	if f.Accuracy == "high" {
		label = "High"
	}
	return fmt.Sprintf(
		"🌡 *Weather Forecast*:\nTemperature: %d°C - %d°C\nConditions: %s\nChance of rain: %d%%\n\n_%s accuracy forecast_",
		f.TempMin, f.TempMax, f.Description, f.RainProbability, label)
}
