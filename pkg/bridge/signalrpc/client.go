// Copyright 2024-2026 Aiku AI

// Package signalrpc talks to signal-cli's JSON-RPC endpoint and its SSE
// event stream.
package signalrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge"
	"github.com/aiku/signal-telegram-bridge/pkg/bridge/tgmd"
)

// Client is a JSON-RPC 2.0 client for signal-cli. It implements
// bridge.SignalClient.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

func NewClient(url string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "signal_rpc").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to prepare %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, data)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s failed: %w", method, rpcResp.Error)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
	}
	return nil
}

// Send delivers a group message. Styles go on the wire in signal-cli's
// "start:length:KIND" form and are omitted entirely when empty.
func (c *Client) Send(ctx context.Context, groupID, text string, styles []tgmd.StyleRange, attachments []string) error {
	if attachments == nil {
		attachments = []string{}
	}
	params := map[string]any{
		"groupId":    groupID,
		"message":    text,
		"attachment": attachments,
	}
	if len(styles) > 0 {
		wire := make([]string, len(styles))
		for i, s := range styles {
			wire[i] = s.String()
		}
		params["textStyles"] = wire
	}
	c.log.Debug().
		Str("group_id", groupID).
		Int("attachments", len(attachments)).
		Int("styles", len(styles)).
		Msg("Sending message")
	return c.call(ctx, "send", params, nil)
}

// CreateGroup provisions a group open to every member: anyone can add
// members, edit details and send messages, and the invite link is on.
func (c *Client) CreateGroup(ctx context.Context, req bridge.CreateGroupRequest) (string, error) {
	params := map[string]any{
		"name":                      req.Name,
		"members":                   req.Members,
		"link":                      "enabled",
		"setPermissionEditDetails":  "everyMember",
		"setPermissionSendMessages": "everyMember",
		"setPermissionAddMember":    "everyMember",
		"description":               req.Description,
		"expiration":                req.ExpirationSeconds,
	}
	if req.AvatarPath != "" {
		params["avatar"] = req.AvatarPath
	}
	var result struct {
		GroupID string `json:"groupId"`
	}
	if err := c.call(ctx, "updateGroup", params, &result); err != nil {
		return "", err
	}
	if result.GroupID == "" {
		return "", fmt.Errorf("updateGroup returned no group ID")
	}
	return result.GroupID, nil
}

// SendReceipt marks a message as read for its sender.
func (c *Client) SendReceipt(ctx context.Context, recipient string, timestamp int64) error {
	return c.call(ctx, "sendReceipt", map[string]any{
		"recipient":       recipient,
		"targetTimestamp": timestamp,
		"type":            "read",
	}, nil)
}
