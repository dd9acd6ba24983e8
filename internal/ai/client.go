package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError carries a non-success gateway status so callers can pass
// rate-limit (429) and quota (402) responses through to their own clients.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai gateway returned %d: %s", e.Code, e.Body)
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, model, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
}

func (c *Client) newRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ChatCompletion issues one non-streaming completion request. Tools may be
// nil for a plain chat turn.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error) {
	req, err := c.newRequest(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var resp ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &resp, nil
}

// StreamChatCompletion issues a streaming completion request and hands the
// raw SSE body to the caller, who owns closing it.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	return res.Body, nil
}
