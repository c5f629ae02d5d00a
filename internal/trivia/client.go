// Package trivia fetches questions from Open Trivia DB and turns them into
// game questions.
package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"livetrivia/internal/domain"
)

const (
	DefaultBaseURL = "https://opentdb.com"
	DefaultTimeout = 5 * time.Second
)

// RawQuestion is one result object as returned by the API. Every string may
// contain HTML entities.
type RawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

// Client talks to the Open Trivia DB HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		headers: map[string]string{"Accept": "application/json"},
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch requests a single question from category.
func (c *Client) Fetch(ctx context.Context, category int) (RawQuestion, error) {
	q := url.Values{}
	q.Set("amount", "1")
	q.Set("category", strconv.Itoa(category))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api.php?"+q.Encode(), nil)
	if err != nil {
		return RawQuestion{}, fmt.Errorf("%w: create request: %v", domain.ErrProviderUnavailable, err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return RawQuestion{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RawQuestion{}, fmt.Errorf("%w: read body: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RawQuestion{}, fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return RawQuestion{}, fmt.Errorf("%w: decode: %v", domain.ErrProviderUnavailable, err)
	}
	if payload.ResponseCode != 0 {
		return RawQuestion{}, fmt.Errorf("%w: response code %d", domain.ErrProviderUnavailable, payload.ResponseCode)
	}
	if len(payload.Results) == 0 {
		return RawQuestion{}, fmt.Errorf("%w: empty results", domain.ErrProviderUnavailable)
	}
	return payload.Results[0], nil
}
