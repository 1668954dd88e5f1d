package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultValuePath is where a remote scoring service is expected to put the score.
const DefaultValuePath = "prediction"

// RemoteRegressor delegates scoring to an external HTTP service. This lets a
// stage be served by any estimator (for example the original fitted model
// behind a small Python endpoint) as long as the service accepts
//
//	POST {"stage": "q1_to_q2", "features": [0.12, -1.3, ...]}
//
// and returns JSON with the numeric score at ValuePath (gjson syntax).
type RemoteRegressor struct {
	endpoint  string
	stage     string
	valuePath string
	client    *http.Client
}

type remoteRequest struct {
	Stage    string    `json:"stage"`
	Features []float64 `json:"features"`
}

// NewRemoteRegressor creates a regressor backed by endpoint. An empty
// valuePath means DefaultValuePath; a nil client gets a pooled default.
func NewRemoteRegressor(endpoint, stage, valuePath string, client *http.Client) *RemoteRegressor {
	if valuePath == "" {
		valuePath = DefaultValuePath
	}
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		}
	}
	return &RemoteRegressor{
		endpoint:  endpoint,
		stage:     stage,
		valuePath: valuePath,
		client:    client,
	}
}

// Name returns the model identifier.
func (m *RemoteRegressor) Name() string {
	return string(KindRemote)
}

// Features is unknown for remote models.
func (m *RemoteRegressor) Features() int {
	return -1
}

// Predict posts the scaled vector to the scoring service.
func (m *RemoteRegressor) Predict(ctx context.Context, x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("remote: features cannot be empty")
	}

	body, err := json.Marshal(remoteRequest{Stage: m.stage, Features: x})
	if err != nil {
		return 0, fmt.Errorf("remote: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("remote: http %d: %s", resp.StatusCode, string(snippet))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("remote: read response: %w", err)
	}

	value := gjson.GetBytes(respBody, m.valuePath)
	if !value.Exists() {
		return 0, fmt.Errorf("remote: value path %q not found in response", m.valuePath)
	}
	if value.Type != gjson.Number {
		return 0, fmt.Errorf("remote: value at %q is %s, want number", m.valuePath, value.Type)
	}

	return value.Float(), nil
}
