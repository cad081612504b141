// ABOUTME: HTTP client for the PropFix assistant API, used by the TUI.
// ABOUTME: Speaks JSON for session creation and multipart/form-data for chat messages.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client talks to the assistant backend over HTTP. One externally supplied
// base URL; transport defaults are used as-is (no retries, no custom
// timeouts, no cancellation beyond the request context).
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the given base URL. Pass nil logger for default.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  logger.With("component", "client"),
	}
}

// Image is a file part attached to a chat message.
type Image struct {
	Filename string
	Data     []byte
}

// ChatRequest is one outbound message. Message may be empty when only an
// image is sent.
type ChatRequest struct {
	SessionID string
	Message   string
	Image     *Image
}

// ChatResponse is the assistant's reply to one message.
type ChatResponse struct {
	Response  string
	AgentUsed string
	Timestamp time.Time
}

// createSessionRequest is the JSON body for POST /api/chat/session.
type createSessionRequest struct {
	UserName string `json:"user_name"`
}

// createSessionResponse is the JSON response from POST /api/chat/session.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// chatWireResponse is the JSON response from POST /api/chat.
type chatWireResponse struct {
	Response  string `json:"response"`
	AgentUsed string `json:"agent_used"`
	Timestamp string `json:"timestamp"`
}

// CreateSession asks the backend for a new session identifier.
func (c *Client) CreateSession(ctx context.Context, userName string) (string, error) {
	body, err := json.Marshal(createSessionRequest{UserName: userName})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/api/chat/session"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.errorFromResponse(resp)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("server returned empty session_id")
	}
	return out.SessionID, nil
}

// SendMessage posts one chat message as a multipart form: session_id,
// message (possibly empty), and at most one image file part.
func (c *Client) SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("session_id", req.SessionID); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}
	if err := w.WriteField("message", req.Message); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}
	if req.Image != nil {
		part, err := w.CreateFormFile("image", req.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("building form: %w", err)
		}
		if _, err := part.Write(req.Image.Data); err != nil {
			return nil, fmt.Errorf("building form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}

	url := c.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var wire chatWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	// An unparseable server timestamp counts as a malformed response.
	ts, err := time.Parse(time.RFC3339, wire.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing response timestamp %q: %w", wire.Timestamp, err)
	}

	return &ChatResponse{
		Response:  wire.Response,
		AgentUsed: wire.AgentUsed,
		Timestamp: ts,
	}, nil
}

// errorFromResponse turns a non-200 response into an error, preferring the
// server's JSON error message when one is present.
func (c *Client) errorFromResponse(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok && msg != "" {
				return fmt.Errorf("%s", msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
