// Package qnx forwards resolved servo commands to the QNX board's REST API.
// Until the board is reachable the client runs in mock mode and reports the
// command as queued without touching the network.
package qnx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Mode selects between the mock short-circuit and real forwarding.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeReal Mode = "real"
)

const (
	DefaultTimeout = 3500 * time.Millisecond

	commandPath = "/api/servo/water"
)

// Result reports what happened to a forwarded command.
type Result struct {
	Status     string `json:"status"` // queued_mock | sent
	Forwarded  bool   `json:"forwarded"`
	QNXBaseURL string `json:"qnx_base_url,omitempty"`
	Payload    any    `json:"payload,omitempty"`
	Response   any    `json:"qnx_response,omitempty"`
}

// Client talks to the QNX command endpoint.
type Client struct {
	mode    Mode
	baseURL string
	http    *http.Client
}

func NewClient(mode Mode, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		mode:    mode,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SendWaterCommand forwards payload to the board. In mock mode (or with no
// base URL configured) nothing is sent and the command is reported queued.
func (c *Client) SendWaterCommand(ctx context.Context, payload any) (Result, error) {
	if c.mode != ModeReal || c.baseURL == "" {
		return Result{
			Status:     "queued_mock",
			Forwarded:  false,
			QNXBaseURL: c.baseURL,
			Payload:    payload,
		}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("forward command: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read qnx response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("qnx returned status %d", resp.StatusCode)
	}

	// The board does not always answer JSON; wrap plain text instead of
	// failing the command.
	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		decoded = map[string]any{"text": string(respBody)}
	}

	return Result{
		Status:    "sent",
		Forwarded: true,
		Response:  decoded,
	}, nil
}
