// Copyright 2024-2026 Aiku AI

// Package media shells out to ffmpeg to transcode voice notes between the
// platforms' native audio containers.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Converter implements bridge.VoiceTranscoder on top of an ffmpeg binary.
type Converter struct {
	ffmpeg string
	log    zerolog.Logger
}

func NewConverter(ffmpegPath string, log zerolog.Logger) *Converter {
	return &Converter{
		ffmpeg: ffmpegPath,
		log:    log.With().Str("component", "media").Logger(),
	}
}

// OggToM4A converts a Telegram OGG voice message to M4A/AAC, which Signal
// iOS can play. The output lands next to the input.
func (c *Converter) OggToM4A(ctx context.Context, inputPath string) (string, error) {
	return c.transcode(ctx, inputPath, ".m4a", "aac")
}

// M4AToOggOpus converts a Signal M4A voice note to OGG Opus so Telegram
// accepts it as a voice message.
func (c *Converter) M4AToOggOpus(ctx context.Context, inputPath string) (string, error) {
	return c.transcode(ctx, inputPath, ".ogg", "libopus")
}

func (c *Converter) transcode(ctx context.Context, inputPath, outExt, codec string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + outExt
	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-y", "-i", inputPath,
		"-c:a", codec, "-b:a", "64k",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg %s conversion failed: %w: %s",
			codec, err, strings.TrimSpace(stderr.String()))
	}
	c.log.Debug().Str("input", inputPath).Str("output", outputPath).Msg("Converted voice file")
	return outputPath, nil
}
