package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"service-carousel/internal/carousel"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

// APIClient talks to a running carousel server.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = defaultServer
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// AppendResult is the reply to a chunk upload.
type AppendResult struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// PushChunk uploads one chunk to /chunks.
func (c *APIClient) PushChunk(data []byte) (AppendResult, error) {
	var res AppendResult
	err := c.do(http.MethodPost, "/chunks", data, &res)
	return res, err
}

// PushReplay uploads one replay file to /replay.
func (c *APIClient) PushReplay(data []byte) (carousel.ReplayState, error) {
	var st carousel.ReplayState
	err := c.do(http.MethodPost, "/replay", data, &st)
	return st, err
}

// Replay fetches the current replay state.
func (c *APIClient) Replay() (carousel.ReplayState, error) {
	var st carousel.ReplayState
	err := c.do(http.MethodGet, "/replay", nil, &st)
	return st, err
}

// Animation fetches the rotation state.
func (c *APIClient) Animation() (carousel.AnimationState, error) {
	var st carousel.AnimationState
	err := c.do(http.MethodGet, "/animation", nil, &st)
	return st, err
}

// Animate posts one of start, stop or refresh to the rotation.
func (c *APIClient) Animate(action string) (carousel.AnimationState, error) {
	var st carousel.AnimationState
	err := c.do(http.MethodPost, "/animation/"+action, nil, &st)
	return st, err
}

// Count returns the number of services on the server.
func (c *APIClient) Count() (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	err := c.do(http.MethodGet, "/services/count", nil, &res)
	return res.Count, err
}

// Render draws the service at index.
func (c *APIClient) Render(index int) error {
	return c.do(http.MethodPost, "/services/"+strconv.Itoa(index)+"/render", nil, nil)
}

// Clear wipes the canvas.
func (c *APIClient) Clear() error {
	return c.do(http.MethodPost, "/canvas/clear", nil, nil)
}

func (c *APIClient) do(method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", carousel.ChunkContentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API error: %s", resp.Status)
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
