// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge/tgmd"
)

// fakeTelegram records every call and serves configurable canned responses.
// DownloadFile materializes a real file under downloadDir so cleanup behavior
// can be asserted.
type fakeTelegram struct {
	mu sync.Mutex

	info        *ChatInfo
	infoErr     error
	downloadDir string
	downloadErr error

	downloaded []string
	texts      []string
	files      []sentFile
	albums     []sentAlbum
	voices     []string
	videoNotes []string
	sendOrder  []string
	sendErr    error
}

type sentFile struct {
	Path    string
	Caption string
}

type sentAlbum struct {
	Paths   []string
	Caption string
}

func (f *fakeTelegram) ChatInfo(_ context.Context, _ int64) (*ChatInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeTelegram) DownloadFile(_ context.Context, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(f.downloadDir, fileID)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	f.downloaded = append(f.downloaded, path)
	return path, nil
}

func (f *fakeTelegram) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	f.sendOrder = append(f.sendOrder, "text")
	return nil
}

func (f *fakeTelegram) SendFile(_ context.Context, _ int64, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.files = append(f.files, sentFile{Path: path, Caption: caption})
	f.sendOrder = append(f.sendOrder, "file")
	return nil
}

func (f *fakeTelegram) SendAlbum(_ context.Context, _ int64, paths []string, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.albums = append(f.albums, sentAlbum{Paths: append([]string(nil), paths...), Caption: caption})
	f.sendOrder = append(f.sendOrder, "album")
	return nil
}

func (f *fakeTelegram) SendVoice(_ context.Context, _ int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.voices = append(f.voices, path)
	f.sendOrder = append(f.sendOrder, "voice")
	return nil
}

func (f *fakeTelegram) SendVideoNote(_ context.Context, _ int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.videoNotes = append(f.videoNotes, path)
	f.sendOrder = append(f.sendOrder, "video_note")
	return nil
}

type signalSend struct {
	GroupID     string
	Text        string
	Styles      []tgmd.StyleRange
	Attachments []string
}

type fakeSignal struct {
	mu sync.Mutex

	sends   []signalSend
	sendErr error

	created       []CreateGroupRequest
	createGroupID string
	createErr     error

	receipts   []ReceiptInfo
	receiptErr error
}

func (f *fakeSignal) Send(_ context.Context, groupID, text string, styles []tgmd.StyleRange, attachments []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, signalSend{
		GroupID:     groupID,
		Text:        text,
		Styles:      append([]tgmd.StyleRange(nil), styles...),
		Attachments: append([]string(nil), attachments...),
	})
	return nil
}

func (f *fakeSignal) CreateGroup(_ context.Context, req CreateGroupRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createGroupID, nil
}

func (f *fakeSignal) SendReceipt(_ context.Context, recipient string, timestamp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return f.receiptErr
	}
	f.receipts = append(f.receipts, ReceiptInfo{Recipient: recipient, Timestamp: timestamp})
	return nil
}

// fakeTranscoder writes a sibling file with the target extension, or fails
// when err is set.
type fakeTranscoder struct {
	mu     sync.Mutex
	err    error
	inputs []string
}

func (f *fakeTranscoder) convert(path, ext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, path)
	if f.err != nil {
		return "", f.err
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	if err := os.WriteFile(out, []byte("converted"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (f *fakeTranscoder) OggToM4A(_ context.Context, path string) (string, error) {
	return f.convert(path, ".m4a")
}

func (f *fakeTranscoder) M4AToOggOpus(_ context.Context, path string) (string, error) {
	return f.convert(path, ".ogg")
}
