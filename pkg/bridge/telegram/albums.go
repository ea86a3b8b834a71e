// Copyright 2024-2026 Aiku AI

package telegram

import (
	"sync"
	"time"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge"
)

// Album parts arrive as separate updates with no end marker; the group is
// considered complete once no new part showed up within this window.
const albumFlushDelay = time.Second

// albumCollector merges messages sharing a media group ID into one message
// and emits it after the flush window closes. The first non-empty text
// becomes the album caption.
type albumCollector struct {
	mu      sync.Mutex
	flush   time.Duration
	pending map[string]*pendingAlbum
	emit    func(*bridge.Message)
	stopped bool
}

type pendingAlbum struct {
	msg   *bridge.Message
	timer *time.Timer
}

func newAlbumCollector(flush time.Duration, emit func(*bridge.Message)) *albumCollector {
	return &albumCollector{
		flush:   flush,
		pending: make(map[string]*pendingAlbum),
		emit:    emit,
	}
}

func (a *albumCollector) add(key string, msg *bridge.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	p, ok := a.pending[key]
	if !ok {
		p = &pendingAlbum{msg: msg}
		p.timer = time.AfterFunc(a.flush, func() { a.flushAlbum(key) })
		a.pending[key] = p
		return
	}
	if p.msg.Text == "" {
		p.msg.Text = msg.Text
	}
	p.msg.Attachments = append(p.msg.Attachments, msg.Attachments...)
	p.timer.Reset(a.flush)
}

func (a *albumCollector) flushAlbum(key string) {
	a.mu.Lock()
	p, ok := a.pending[key]
	delete(a.pending, key)
	a.mu.Unlock()
	if ok {
		a.emit(p.msg)
	}
}

// stop cancels all pending timers. Incomplete albums are dropped.
func (a *albumCollector) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key, p := range a.pending {
		p.timer.Stop()
		delete(a.pending, key)
	}
}
