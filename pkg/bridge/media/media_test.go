// Copyright 2024-2026 Aiku AI

package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge"
)

func TestConverterImplementsVoiceTranscoder(t *testing.T) {
	t.Parallel()
	var _ bridge.VoiceTranscoder = (*Converter)(nil)
}

// fakeFFmpeg installs a script that touches its output argument (the last
// one) and exits with the given status.
func fakeFFmpeg(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test script requires a POSIX shell")
	}
	script := "#!/bin/sh\n"
	if exitCode == 0 {
		script += "for out; do :; done\ntouch \"$out\"\nexit 0\n"
	} else {
		script += "echo 'conversion blew up' >&2\nexit 1\n"
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestOggToM4AOutputPath(t *testing.T) {
	t.Parallel()
	c := NewConverter(fakeFFmpeg(t, 0), zerolog.Nop())
	input := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(input, []byte("ogg"), 0o644))

	out, err := c.OggToM4A(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "voice.m4a"), out)
	assert.FileExists(t, out)
}

func TestM4AToOggOpusOutputPath(t *testing.T) {
	t.Parallel()
	c := NewConverter(fakeFFmpeg(t, 0), zerolog.Nop())
	input := filepath.Join(t.TempDir(), "note.m4a")
	require.NoError(t, os.WriteFile(input, []byte("m4a"), 0o644))

	out, err := c.M4AToOggOpus(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(input), "note.ogg"), out)
	assert.FileExists(t, out)
}

func TestTranscodeFailureIncludesStderr(t *testing.T) {
	t.Parallel()
	c := NewConverter(fakeFFmpeg(t, 1), zerolog.Nop())
	_, err := c.OggToM4A(context.Background(), "/tmp/whatever.ogg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversion blew up")
}

func TestTranscodeMissingBinary(t *testing.T) {
	t.Parallel()
	c := NewConverter(filepath.Join(t.TempDir(), "no-such-ffmpeg"), zerolog.Nop())
	_, err := c.OggToM4A(context.Background(), "/tmp/whatever.ogg")
	assert.Error(t, err)
}
