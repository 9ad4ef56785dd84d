// Package platform talks to the social platform's v2 API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
)

const (
	DefaultBaseURL = "https://api.x.com/2"
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 1 << 20
)

type Signer interface {
	Authorization(req oauth1.Request, token oauth1.Token) (string, error)
}

// Account is the identity behind an access token.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type usersMeResponse struct {
	Data *Account `json:"data"`
}

type Client struct {
	signer  Signer
	baseURL string
	timeout time.Duration
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the transport. A client without a timeout gets the default one.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func New(signer Signer, opts ...Option) *Client {
	c := &Client{
		signer:  signer,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 || c.http.Timeout <= 0 {
		timeout := c.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient := *c.http
		httpClient.Timeout = timeout
		c.http = &httpClient
	}
	return c
}

// CreateTweet publishes text and returns the platform assigned id. It never retries.
func (c *Client) CreateTweet(ctx context.Context, text string, token oauth1.Token) (string, error) {
	payload, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshalling tweet: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/tweets", payload, token)
	if err != nil {
		return "", err
	}

	var out createTweetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &UpstreamError{StatusCode: status, Body: string(body), Err: fmt.Errorf("%w: %v", ErrorSerialization, err)}
	}
	if out.Data == nil || out.Data.ID == "" {
		return "", &UpstreamError{StatusCode: status, Body: string(body), Err: fmt.Errorf("%w: missing data.id", ErrorSerialization)}
	}
	return out.Data.ID, nil
}

// VerifyCredentials resolves the account that owns token.
func (c *Client) VerifyCredentials(ctx context.Context, token oauth1.Token) (*Account, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/users/me", nil, token)
	if err != nil {
		return nil, err
	}

	var out usersMeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{StatusCode: status, Body: string(body), Err: fmt.Errorf("%w: %v", ErrorSerialization, err)}
	}
	if out.Data == nil || out.Data.ID == "" {
		return nil, &UpstreamError{StatusCode: status, Body: string(body), Err: fmt.Errorf("%w: missing data.id", ErrorSerialization)}
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, token oauth1.Token) ([]byte, int, error) {
	url := c.baseURL + path
	authorization, err := c.signer.Authorization(oauth1.Request{Method: method, URL: url}, token)
	if err != nil {
		return nil, 0, fmt.Errorf("signing request: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, resp.StatusCode, nil
}

// FormatText appends the hashtags to content, space separated, each prefixed with '#'.
func FormatText(content string, hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		tags = append(tags, "#"+tag)
	}
	if len(tags) == 0 {
		return content
	}
	return content + " " + strings.Join(tags, " ")
}
