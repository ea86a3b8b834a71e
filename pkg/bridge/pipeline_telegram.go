// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramPipeline drains the Telegram delivery queue. Signal attachments are
// classified by filename: .m4a files are voice notes (transcoded to OGG Opus
// first), .mp4 files optionally go out as round video notes, everything else
// is sent as regular media. After a fully successful delivery a read receipt
// is sent back to the Signal sender.
type TelegramPipeline struct {
	queue       *Queue[*Message]
	telegram    TelegramClient
	signal      SignalClient
	transcoder  VoiceTranscoder
	videoAsNote bool
	delay       time.Duration
	log         zerolog.Logger
}

func NewTelegramPipeline(
	queue *Queue[*Message],
	telegram TelegramClient,
	signal SignalClient,
	transcoder VoiceTranscoder,
	videoAsNote bool,
	delay time.Duration,
	log zerolog.Logger,
) *TelegramPipeline {
	return &TelegramPipeline{
		queue:       queue,
		telegram:    telegram,
		signal:      signal,
		transcoder:  transcoder,
		videoAsNote: videoAsNote,
		delay:       delay,
		log:         log.With().Str("component", "telegram_pipeline").Logger(),
	}
}

func (p *TelegramPipeline) Run(ctx context.Context) {
	for {
		msg, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.deliver(ctx, msg)
		sleepCtx(ctx, p.delay)
	}
}

func (p *TelegramPipeline) deliver(ctx context.Context, msg *Message) {
	log := p.log.With().
		Str("group_id", msg.GroupID).
		Int64("chat_id", msg.ChatID).
		Logger()

	var voices, videoNotes, files []string
	var cleanup []string
	defer func() {
		removeFiles(log, cleanup)
	}()

	for _, att := range msg.Attachments {
		path := att.LocalPath
		if _, err := os.Stat(path); err != nil {
			log.Warn().Str("path", path).Msg("Signal attachment not found")
			continue
		}
		cleanup = append(cleanup, path)
		switch {
		case strings.HasSuffix(path, ".m4a"):
			converted, err := p.transcoder.M4AToOggOpus(ctx, path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Voice conversion failed, sending original")
				voices = append(voices, path)
			} else {
				cleanup = append(cleanup, converted)
				voices = append(voices, converted)
			}
		case strings.HasSuffix(path, ".mp4") && p.videoAsNote:
			videoNotes = append(videoNotes, path)
		default:
			files = append(files, path)
		}
	}

	if err := p.send(ctx, msg, voices, videoNotes, files); err != nil {
		log.Err(err).Msg("Failed to deliver message to Telegram")
		return
	}
	log.Info().
		Int("voices", len(voices)).
		Int("video_notes", len(videoNotes)).
		Int("files", len(files)).
		Msg("Delivered message to Telegram")

	// The receipt is best-effort: its failure never retries the delivery.
	if msg.Receipt != nil && msg.Receipt.Recipient != "" && msg.Receipt.Timestamp != 0 {
		if err := p.signal.SendReceipt(ctx, msg.Receipt.Recipient, msg.Receipt.Timestamp); err != nil {
			log.Warn().Err(err).Str("recipient", msg.Receipt.Recipient).Msg("Failed to send read receipt")
		}
	}
}

// send performs the delivery sequence: voice notes, then video notes, then
// the media album or single file with the text as caption, or the bare text.
// The first failure aborts the rest of the sequence.
func (p *TelegramPipeline) send(ctx context.Context, msg *Message, voices, videoNotes, files []string) error {
	for _, path := range voices {
		if err := p.telegram.SendVoice(ctx, msg.ChatID, path); err != nil {
			return fmt.Errorf("failed to send voice note: %w", err)
		}
	}
	for _, path := range videoNotes {
		if err := p.telegram.SendVideoNote(ctx, msg.ChatID, path); err != nil {
			return fmt.Errorf("failed to send video note: %w", err)
		}
	}
	switch {
	case len(files) > 1:
		if err := p.telegram.SendAlbum(ctx, msg.ChatID, files, msg.Text); err != nil {
			return fmt.Errorf("failed to send album: %w", err)
		}
	case len(files) == 1:
		if err := p.telegram.SendFile(ctx, msg.ChatID, files[0], msg.Text); err != nil {
			return fmt.Errorf("failed to send file: %w", err)
		}
	case msg.Text != "":
		if err := p.telegram.SendText(ctx, msg.ChatID, msg.Text); err != nil {
			return fmt.Errorf("failed to send text: %w", err)
		}
	}
	return nil
}
