package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
)

// RemoteName identifies the remote forecaster.
const RemoteName = "remote"

type remoteRequest struct {
	Horizon int                 `json:"horizon"`
	Series  []domain.DailyUsage `json:"series"`
}

type remotePoint struct {
	Date          string  `json:"date"`
	PointEstimate float64 `json:"point_estimate"`
	LowerBound    float64 `json:"lower_bound"`
	UpperBound    float64 `json:"upper_bound"`
	IsForecast    bool    `json:"is_forecast"`
}

type remoteResponse struct {
	Forecast []remotePoint `json:"forecast"`
}

// RemoteForecaster delegates fitting to an external forecasting service that
// accepts the daily series on POST {baseURL}/predict.
type RemoteForecaster struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteForecaster(baseURL string, client *http.Client) *RemoteForecaster {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteForecaster{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (f *RemoteForecaster) Name() string {
	return RemoteName
}

func (f *RemoteForecaster) Fit(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	points, err := f.call(ctx, series, horizon)
	if err != nil {
		return nil, &domain.ForecastFittingError{Forecaster: RemoteName, Reason: "remote call failed", Err: err}
	}
	return points, nil
}

func (f *RemoteForecaster) call(ctx context.Context, series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	jsonData, err := json.Marshal(remoteRequest{Horizon: horizon, Series: series})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("forecast service returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("error decoding forecast response: %w", err)
	}

	out := make([]domain.ForecastPoint, 0, len(decoded.Forecast))
	for i, p := range decoded.Forecast {
		date, err := time.Parse(domain.DateLayout, p.Date)
		if err != nil {
			return nil, fmt.Errorf("forecast point %d: invalid date %q", i, p.Date)
		}
		out = append(out, domain.ForecastPoint{
			Date:          date,
			PointEstimate: p.PointEstimate,
			LowerBound:    p.LowerBound,
			UpperBound:    p.UpperBound,
			IsForecast:    p.IsForecast,
		})
	}
	return out, nil
}
