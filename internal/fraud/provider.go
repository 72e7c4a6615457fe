package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Score is the ML service response for one feature payload. Absent fields
// decode to their zero values, matching the fail-safe zero-score default.
type Score struct {
	FraudProbability float64  `json:"fraud_probability"`
	Label            int      `json:"label"`
	ModelName        string   `json:"model_name"`
	ModelVersion     string   `json:"model_version"`
	Reasons          []string `json:"reasons"`
}

// ScoreProvider scores a feature payload. Implementations must honor the
// context deadline; the pipeline treats any error as a scoring outage.
type ScoreProvider interface {
	Score(ctx context.Context, features interface{}) (*Score, error)
}

// HTTPProvider calls the external ML scoring service over HTTP.
type HTTPProvider struct {
	URL    string
	Client *http.Client
}

// NewHTTPProvider builds a provider with a bounded per-call timeout.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Score(ctx context.Context, features interface{}) (*Score, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ml service returned status %d", resp.StatusCode)
	}

	var score Score
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, err
	}
	return &score, nil
}
