// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge/tgmd"
)

// Direction identifies which platform a message came from.
type Direction int

const (
	TelegramToSignal Direction = iota
	SignalToTelegram
)

func (d Direction) String() string {
	switch d {
	case TelegramToSignal:
		return "telegram-to-signal"
	case SignalToTelegram:
		return "signal-to-telegram"
	default:
		return "unknown"
	}
}

// AttachmentKind classifies a media item for transport decisions.
type AttachmentKind string

const (
	AttachmentPhoto AttachmentKind = "photo"
	AttachmentVideo AttachmentKind = "video"
	AttachmentVoice AttachmentKind = "voice"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment references one media item traveling with a message. Telegram
// attachments carry the bot API file ID until the delivery pipeline downloads
// them; Signal attachments carry the path where signal-cli stored the file.
type Attachment struct {
	ID        string
	LocalPath string
	Kind      AttachmentKind
}

// ReceiptInfo identifies the Signal sender to acknowledge after a message has
// been delivered to Telegram. Recipient is the sender UUID, falling back to
// the phone number.
type ReceiptInfo struct {
	Recipient string
	Timestamp int64
}

// Message is the canonical unit routed through the engine, normalized from
// either platform's native event shape.
type Message struct {
	Direction Direction

	// ChatID and IsChannel identify the Telegram side. GroupID identifies
	// the Signal side. The router fills in whichever side the message is
	// heading toward.
	ChatID    int64
	IsChannel bool
	GroupID   string

	// SenderName is the resolved display name for group chats, empty for
	// private chats and channels.
	SenderName  string
	Text        string
	Attachments []Attachment

	// Receipt is set on Signal-originated messages so the delivery
	// pipeline can acknowledge the sender afterwards.
	Receipt *ReceiptInfo
}

// ChatInfo describes a Telegram chat entity for group provisioning.
// PhotoPath points at a downloaded avatar temp file, empty if the chat has
// none. The caller owns deleting it.
type ChatInfo struct {
	Title     string
	Username  string
	PhotoPath string
}

// CreateGroupRequest carries the parameters for provisioning a Signal group.
type CreateGroupRequest struct {
	Name              string
	Members           []string
	Description       string
	ExpirationSeconds int
	AvatarPath        string
}

// TelegramClient is the Telegram surface the engine depends on.
type TelegramClient interface {
	// ChatInfo looks up a chat entity, downloading its avatar if present.
	ChatInfo(ctx context.Context, chatID int64) (*ChatInfo, error)
	// DownloadFile fetches a file by bot API file ID and returns the local path.
	DownloadFile(ctx context.Context, fileID string) (string, error)
	SendText(ctx context.Context, chatID int64, text string) error
	// SendFile sends a single photo, video or document with an optional caption.
	SendFile(ctx context.Context, chatID int64, path, caption string) error
	// SendAlbum sends multiple media items as one grouped message.
	SendAlbum(ctx context.Context, chatID int64, paths []string, caption string) error
	SendVoice(ctx context.Context, chatID int64, path string) error
	SendVideoNote(ctx context.Context, chatID int64, path string) error
}

// VoiceTranscoder converts voice notes between the platforms' native
// containers. Both methods return the path of the converted file.
type VoiceTranscoder interface {
	// OggToM4A produces an AAC file Signal iOS can play.
	OggToM4A(ctx context.Context, path string) (string, error)
	// M4AToOggOpus produces an Opus file Telegram accepts as a voice note.
	M4AToOggOpus(ctx context.Context, path string) (string, error)
}

// SignalClient is the signal-cli surface the engine depends on.
type SignalClient interface {
	// Send delivers a group message with optional attachments and text styles.
	Send(ctx context.Context, groupID, text string, styles []tgmd.StyleRange, attachments []string) error
	// CreateGroup provisions a new group and returns its ID.
	CreateGroup(ctx context.Context, req CreateGroupRequest) (string, error)
	// SendReceipt marks a message as read for its sender.
	SendReceipt(ctx context.Context, recipient string, timestamp int64) error
}
