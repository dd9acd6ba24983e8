// Package chatclient drives a chat session against the /chat endpoint. It
// owns the transcript for one session, streams the assistant's answer into
// a single growing message, and reports when the server says the board was
// mutated so callers can refresh their task cache.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Joyuchen/flow-state-board/internal/model"
	"github.com/Joyuchen/flow-state-board/internal/sse"
)

// ErrBusy is returned when a send is attempted while another is in flight.
// One outstanding send per session; callers disable submit instead of
// queueing.
var ErrBusy = errors.New("chat: send already in flight")

const (
	msgRateLimited   = "Rate limit exceeded. Please try again in a moment."
	msgQuotaExceeded = "Usage limit reached. Please add credits to continue."
	msgApology       = "Sorry, something went wrong. Please try again."
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	TaskContext string    `json:"taskContext"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu       sync.Mutex
	inFlight bool
	messages []Message

	// OnTranscript fires after every transcript change, including each
	// streamed content delta.
	OnTranscript func([]Message)
	// OnBoardUpdated fires once, after the stream ends, when the server
	// reported executed tools.
	OnBoardUpdated func()
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    http.DefaultClient,
	}
}

// Messages returns a copy of the current transcript.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// TaskContext renders the user's tasks as the plain-text summary spliced
// into the system prompt. Empty when there are no tasks.
func TaskContext(tasks []model.Task) string {
	if len(tasks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nUser's current tasks:\n")
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- [%s] %q (priority: %s", t.Status, t.Title, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&b, ", due: %s", t.DueDate.Format("2006-01-02"))
		}
		b.WriteString(")")
	}
	return b.String()
}

// Send posts the transcript plus the new user message and consumes the SSE
// response. Transport and decode failures resolve to a fixed apology in the
// transcript, never an error to the caller; the only errors returned are
// ErrBusy and an empty text no-op.
func (c *Client) Send(ctx context.Context, text string, tasks []model.Task) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.messages = append(c.messages, Message{Role: "user", Content: text})
	history := make([]Message, len(c.messages))
	copy(history, c.messages)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.notify()
	c.stream(ctx, history, TaskContext(tasks))
	return nil
}

func (c *Client) stream(ctx context.Context, history []Message, taskContext string) {
	assistantSoFar := ""
	upsert := func(chunk string) {
		assistantSoFar += chunk
		c.mu.Lock()
		if n := len(c.messages); n > 0 && c.messages[n-1].Role == "assistant" {
			c.messages[n-1].Content = assistantSoFar
		} else {
			c.messages = append(c.messages, Message{Role: "assistant", Content: assistantSoFar})
		}
		c.mu.Unlock()
		c.notify()
	}

	body, err := json.Marshal(chatRequest{Messages: history, TaskContext: taskContext})
	if err != nil {
		upsert(msgApology)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewBuffer(body))
	if err != nil {
		upsert(msgApology)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		upsert(msgApology)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		upsert(msgRateLimited)
		return
	case http.StatusPaymentRequired:
		upsert(msgQuotaExceeded)
		return
	case http.StatusOK:
	default:
		upsert(msgApology)
		return
	}

	boardUpdated := false
	apply := func(frames []sse.Frame) {
		for _, f := range frames {
			if f.IsToolMarker() {
				boardUpdated = true
				continue
			}
			if delta := f.ContentDelta(); delta != "" {
				upsert(delta)
			}
		}
	}

	var parser sse.Parser
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			apply(parser.Feed(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			upsert(msgApology)
			break
		}
		if parser.Done() {
			break
		}
	}

	// The last read can leave a complete line with no trailing newline.
	apply(parser.Flush())

	if boardUpdated && c.OnBoardUpdated != nil {
		c.OnBoardUpdated()
	}
}

func (c *Client) notify() {
	if c.OnTranscript == nil {
		return
	}
	c.OnTranscript(c.Messages())
}
