// Copyright 2024-2026 Aiku AI

package signalrpc

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State reports where the listener is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Listener consumes signal-cli's SSE event stream and hands every incoming
// group message to a handler. It reconnects after a fixed backoff until the
// context is cancelled.
type Listener struct {
	url     string
	backoff time.Duration
	// The stream stays open indefinitely, so this client has no timeout.
	http  *http.Client
	state atomic.Int32
	log   zerolog.Logger
}

func NewListener(url string, backoff time.Duration, log zerolog.Logger) *Listener {
	return &Listener{
		url:     url,
		backoff: backoff,
		http:    &http.Client{},
		log:     log.With().Str("component", "signal_listener").Logger(),
	}
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, handler func(MessageInfo)) {
	for {
		if ctx.Err() != nil {
			l.state.Store(int32(StateStopped))
			return
		}
		l.stream(ctx, handler)
		l.state.Store(int32(StateDisconnected))

		select {
		case <-ctx.Done():
			l.state.Store(int32(StateStopped))
			return
		case <-time.After(l.backoff):
			l.log.Info().Dur("backoff", l.backoff).Msg("Reconnecting to Signal event stream")
		}
	}
}

// stream runs one connection attempt to completion.
func (l *Listener) stream(ctx context.Context, handler func(MessageInfo)) {
	l.state.Store(int32(StateConnecting))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		l.log.Err(err).Msg("Failed to prepare stream request")
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Error().Err(err).Msg("Failed to connect to Signal event stream")
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		l.log.Error().Int("status", resp.StatusCode).Msg("Signal event stream refused connection")
		return
	}

	l.state.Store(int32(StateStreaming))
	l.log.Info().Str("url", l.url).Msg("Connected to Signal event stream")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		info, err := parseEvent([]byte(payload))
		if err != nil {
			l.log.Warn().Err(err).Msg("Failed to parse event payload")
			continue
		}
		if info == nil {
			continue
		}
		l.log.Info().
			Str("group_id", info.GroupID).
			Str("sender", info.SenderName).
			Int("attachments", len(info.AttachmentIDs)).
			Msg("Received Signal group message")
		handler(*info)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		l.log.Error().Err(err).Msg("Signal event stream broke")
	}
}
