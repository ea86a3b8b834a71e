// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge/tgmd"
)

// SignalPipeline drains the Signal delivery queue: it downloads Telegram
// media, transcodes voice notes, converts the markdown and sends the result
// to the mapped Signal group. Failures are logged and the loop moves on.
type SignalPipeline struct {
	queue      *Queue[*Message]
	telegram   TelegramClient
	signal     SignalClient
	transcoder VoiceTranscoder
	delay      time.Duration
	log        zerolog.Logger
}

func NewSignalPipeline(
	queue *Queue[*Message],
	telegram TelegramClient,
	signal SignalClient,
	transcoder VoiceTranscoder,
	delay time.Duration,
	log zerolog.Logger,
) *SignalPipeline {
	return &SignalPipeline{
		queue:      queue,
		telegram:   telegram,
		signal:     signal,
		transcoder: transcoder,
		delay:      delay,
		log:        log.With().Str("component", "signal_pipeline").Logger(),
	}
}

func (p *SignalPipeline) Run(ctx context.Context) {
	for {
		msg, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.deliver(ctx, msg)
		sleepCtx(ctx, p.delay)
	}
}

func (p *SignalPipeline) deliver(ctx context.Context, msg *Message) {
	log := p.log.With().
		Int64("chat_id", msg.ChatID).
		Str("group_id", msg.GroupID).
		Logger()

	var attachments []string
	var cleanup []string
	defer func() {
		removeFiles(log, cleanup)
	}()

	for _, att := range msg.Attachments {
		path, err := p.telegram.DownloadFile(ctx, att.ID)
		if err != nil {
			log.Warn().Err(err).Str("attachment", att.ID).Msg("Failed to download attachment")
			continue
		}
		cleanup = append(cleanup, path)
		if att.Kind == AttachmentVoice {
			converted, err := p.transcoder.OggToM4A(ctx, path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Voice conversion failed, sending original")
			} else {
				cleanup = append(cleanup, converted)
				path = converted
			}
		}
		attachments = append(attachments, path)
	}

	plain, styles := tgmd.Convert(formatWithSender(msg.Text, msg.SenderName))
	if plain == "" && len(attachments) == 0 {
		log.Debug().Msg("Nothing left to send after processing attachments")
		return
	}

	if err := p.signal.Send(ctx, msg.GroupID, plain, styles, attachments); err != nil {
		log.Err(err).Msg("Failed to send message to Signal")
		return
	}
	log.Info().
		Int("attachments", len(attachments)).
		Int("styles", len(styles)).
		Msg("Delivered message to Signal")
}

// formatWithSender prefixes group-chat messages with the sender's display
// name so Signal members can tell the Telegram participants apart.
func formatWithSender(text, sender string) string {
	if sender == "" {
		return text
	}
	if text == "" {
		return sender + ":"
	}
	return sender + ":\n" + text
}

func removeFiles(log zerolog.Logger, paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}
}
