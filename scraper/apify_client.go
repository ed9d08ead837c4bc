package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	apifyAPIBase     = "https://api.apify.com/v2"
	apifyPollTimeout = 15 * time.Minute
	apifyPollDelay   = 10 * time.Second
)

// ApifyClient talks to the Apify REST API: start an actor run, wait for it to
// finish and read its default dataset.
type ApifyClient struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	pollDelay   time.Duration
	pollTimeout time.Duration
}

func NewApifyClient(apiKey string, client *http.Client) *ApifyClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ApifyClient{
		baseURL:     apifyAPIBase,
		apiKey:      apiKey,
		client:      client,
		pollDelay:   apifyPollDelay,
		pollTimeout: apifyPollTimeout,
	}
}

func (c *ApifyClient) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("token", c.apiKey)
	return c.baseURL + path + "?" + query.Encode()
}

// RunActor starts actorID with input and blocks until the run reaches a
// terminal status. It returns the run's dataset id.
func (c *ApifyClient) RunActor(ctx context.Context, actorID string, input any) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("APIFY_API_KEY not set")
	}

	runID, err := c.startRun(ctx, actorID, input)
	if err != nil {
		return "", fmt.Errorf("failed to start apify run: %w", err)
	}
	log.Printf("Apify run started: %s (actor: %s)", runID, actorID)

	datasetID, err := c.waitForRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("apify run failed: %w", err)
	}
	log.Printf("Apify run complete, dataset: %s", datasetID)
	return datasetID, nil
}

func (c *ApifyClient) startRun(ctx context.Context, actorID string, input any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/acts/"+actorID+"/runs", nil), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("apify start run failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("apify start run returned no run id")
	}
	return result.Data.ID, nil
}

func (c *ApifyClient) waitForRun(ctx context.Context, runID string) (string, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for time.Now().Before(deadline) {
		status, datasetID, err := c.runStatus(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("Warning: apify status check for %s: %v", runID, err)
		}

		switch status {
		case "SUCCEEDED":
			return datasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("run %s: %s", runID, status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollDelay):
		}
	}

	return "", fmt.Errorf("timeout waiting for run %s", runID)
}

func (c *ApifyClient) runStatus(ctx context.Context, runID string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/actor-runs/"+runID, nil), nil)
	if err != nil {
		return "", "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Status           string `json:"status"`
			DefaultDatasetID string `json:"defaultDatasetId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Data.Status, result.Data.DefaultDatasetID, nil
}

// DatasetItems returns the raw items of a dataset, undecoded.
func (c *ApifyClient) DatasetItems(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/datasets/"+datasetID+"/items", q), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset fetch failed %d: %s", resp.StatusCode, string(respBody))
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return items, nil
}
