// Copyright 2024-2026 Aiku AI

// Package telegram adapts the Telegram bot API to the bridge's client
// interface: a long-poll update listener that normalizes incoming messages
// and the outbound send primitives.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exmime"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge"
)

// Client wraps a bot API session. It implements bridge.TelegramClient.
type Client struct {
	bot      *tgbotapi.BotAPI
	http     *http.Client
	mediaDir string
	log      zerolog.Logger
}

func New(token, mediaDir string, log zerolog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	c := &Client{
		bot:      bot,
		http:     &http.Client{Timeout: 2 * time.Minute},
		mediaDir: mediaDir,
		log:      log.With().Str("component", "telegram").Logger(),
	}
	c.log.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram bot account")
	return c, nil
}

// Listen long-polls for updates until ctx is cancelled, normalizing every
// message or channel post and handing it to handler. Messages sharing a media
// group ID are aggregated into one album message first.
func (c *Client) Listen(ctx context.Context, handler func(*bridge.Message)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)
	albums := newAlbumCollector(albumFlushDelay, handler)
	defer albums.stop()

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, albumKey := c.parseUpdate(update)
			if msg == nil {
				continue
			}
			if albumKey != "" {
				albums.add(albumKey, msg)
			} else {
				handler(msg)
			}
		}
	}
}

// parseUpdate normalizes one update. It returns nil for updates the bridge
// does not handle, and the media group ID when the message is part of an
// album.
func (c *Client) parseUpdate(update tgbotapi.Update) (*bridge.Message, string) {
	msg := update.Message
	isChannel := false
	if msg == nil {
		msg = update.ChannelPost
		isChannel = msg != nil
	}
	if msg == nil || msg.Chat == nil {
		return nil, ""
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	out := &bridge.Message{
		Direction:   bridge.TelegramToSignal,
		ChatID:      msg.Chat.ID,
		IsChannel:   isChannel || msg.Chat.IsChannel(),
		Text:        text,
		SenderName:  senderName(msg),
		Attachments: collectAttachments(msg),
	}
	if out.Text == "" && len(out.Attachments) == 0 {
		c.log.Debug().Int64("chat_id", out.ChatID).Msg("Ignoring update without forwardable content")
		return nil, ""
	}
	return out, msg.MediaGroupID
}

func collectAttachments(msg *tgbotapi.Message) []bridge.Attachment {
	var atts []bridge.Attachment
	if len(msg.Photo) > 0 {
		// The last size is the largest.
		atts = append(atts, bridge.Attachment{
			ID:   msg.Photo[len(msg.Photo)-1].FileID,
			Kind: bridge.AttachmentPhoto,
		})
	}
	if msg.Video != nil {
		atts = append(atts, bridge.Attachment{ID: msg.Video.FileID, Kind: bridge.AttachmentVideo})
	}
	if msg.VideoNote != nil {
		atts = append(atts, bridge.Attachment{ID: msg.VideoNote.FileID, Kind: bridge.AttachmentVideo})
	}
	if msg.Voice != nil {
		atts = append(atts, bridge.Attachment{ID: msg.Voice.FileID, Kind: bridge.AttachmentVoice})
	}
	if msg.Audio != nil {
		atts = append(atts, bridge.Attachment{ID: msg.Audio.FileID, Kind: bridge.AttachmentFile})
	}
	if msg.Document != nil {
		atts = append(atts, bridge.Attachment{ID: msg.Document.FileID, Kind: bridge.AttachmentFile})
	}
	return atts
}

// senderName resolves a display name for group chat messages. Private chats
// and channels get none.
func senderName(msg *tgbotapi.Message) string {
	if msg.Chat == nil || !(msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		return ""
	}
	from := msg.From
	if from == nil {
		return ""
	}
	if from.FirstName != "" {
		if from.LastName != "" {
			return from.FirstName + " " + from.LastName
		}
		return from.FirstName
	}
	if from.UserName != "" {
		return from.UserName
	}
	return fmt.Sprintf("User %d", from.ID)
}

// ChatInfo looks up a chat entity and downloads its avatar when it has one.
func (c *Client) ChatInfo(ctx context.Context, chatID int64) (*bridge.ChatInfo, error) {
	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}

	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	if title == "" {
		title = "Unknown Chat"
	}
	info := &bridge.ChatInfo{Title: title, Username: chat.UserName}

	if chat.Photo != nil && chat.Photo.BigFileID != "" {
		photoPath, err := c.DownloadFile(ctx, chat.Photo.BigFileID)
		if err != nil {
			c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to download chat photo")
		} else {
			info.PhotoPath = photoPath
		}
	}
	return info, nil
}

// DownloadFile fetches a file by ID into the media directory and returns the
// local path. The extension comes from the remote path, falling back to the
// response content type.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.bot.Token), nil)
	if err != nil {
		return "", fmt.Errorf("failed to prepare download: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	localPath := filepath.Join(c.mediaDir, file.FileUniqueID+extensionFor(file.FilePath, resp.Header.Get("Content-Type")))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	c.log.Debug().Str("file_id", fileID).Str("path", localPath).Msg("Downloaded Telegram media")
	return localPath, nil
}

func extensionFor(remotePath, contentType string) string {
	if ext := path.Ext(remotePath); ext != "" {
		return ext
	}
	return exmime.ExtensionFromMimetype(contentType)
}

func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) SendFile(_ context.Context, chatID int64, filePath, caption string) error {
	var msg tgbotapi.Chattable
	switch classifyExt(filePath) {
	case bridge.AttachmentPhoto:
		cfg := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(filePath))
		cfg.Caption = caption
		msg = cfg
	case bridge.AttachmentVideo:
		cfg := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(filePath))
		cfg.Caption = caption
		msg = cfg
	default:
		cfg := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(filePath))
		cfg.Caption = caption
		msg = cfg
	}
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	return nil
}

func (c *Client) SendAlbum(_ context.Context, chatID int64, paths []string, caption string) error {
	media := make([]any, 0, len(paths))
	for i, filePath := range paths {
		itemCaption := ""
		if i == 0 {
			// Telegram shows the first item's caption under the album.
			itemCaption = caption
		}
		switch classifyExt(filePath) {
		case bridge.AttachmentPhoto:
			item := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(filePath))
			item.Caption = itemCaption
			media = append(media, item)
		case bridge.AttachmentVideo:
			item := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(filePath))
			item.Caption = itemCaption
			media = append(media, item)
		default:
			item := tgbotapi.NewInputMediaDocument(tgbotapi.FilePath(filePath))
			item.Caption = itemCaption
			media = append(media, item)
		}
	}
	if _, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return fmt.Errorf("failed to send album: %w", err)
	}
	return nil
}

func (c *Client) SendVoice(_ context.Context, chatID int64, filePath string) error {
	if _, err := c.bot.Send(tgbotapi.NewVoice(chatID, tgbotapi.FilePath(filePath))); err != nil {
		return fmt.Errorf("failed to send voice note: %w", err)
	}
	return nil
}

func (c *Client) SendVideoNote(_ context.Context, chatID int64, filePath string) error {
	if _, err := c.bot.Send(tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FilePath(filePath))); err != nil {
		return fmt.Errorf("failed to send video note: %w", err)
	}
	return nil
}

// classifyExt picks the send method for an outbound file by its extension.
func classifyExt(filePath string) bridge.AttachmentKind {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return bridge.AttachmentPhoto
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return bridge.AttachmentVideo
	default:
		return bridge.AttachmentFile
	}
}
