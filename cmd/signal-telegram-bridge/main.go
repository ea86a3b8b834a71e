// Copyright 2024-2026 Aiku AI

// Command signal-telegram-bridge relays messages between Telegram chats and
// Signal groups through signal-cli's JSON-RPC API, creating a Signal group
// on demand for every Telegram chat it sees.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/signal-telegram-bridge/pkg/bridge"
	"github.com/aiku/signal-telegram-bridge/pkg/bridge/media"
	"github.com/aiku/signal-telegram-bridge/pkg/bridge/signalrpc"
	"github.com/aiku/signal-telegram-bridge/pkg/bridge/telegram"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "signal-telegram-bridge",
	Short:        "Relay messages between Telegram chats and Signal groups",
	Version:      fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path of the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		With().Timestamp().Logger().Level(level)
	exzerolog.SetupDefaults(&log)

	cfg, err := bridge.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.MediaDir, log)
	if err != nil {
		return err
	}
	rpc := signalrpc.NewClient(cfg.Signal.RPCURL, cfg.Signal.RequestTimeout(), log)
	transcoder := media.NewConverter(cfg.FFmpegPath, log)

	br, err := bridge.New(cfg, tg, rpc, transcoder, log)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("built", BuildTime).
		Msg("Starting signal-telegram-bridge")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tg.Listen(ctx, br.Route)
	}()
	if cfg.Signal.Forwarding {
		listener := signalrpc.NewListener(cfg.Signal.EventsURL, cfg.Signal.ReconnectDelay(), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx, func(info signalrpc.MessageInfo) {
				br.Route(signalMessage(cfg.Signal.AttachmentsDir, info))
			})
		}()
	}

	br.Run(ctx)
	wg.Wait()
	log.Info().Msg("Shutdown complete")
	return nil
}

// signalMessage turns a listener event into a canonical message. Attachment
// IDs double as filenames inside signal-cli's attachments directory.
func signalMessage(attachmentsDir string, info signalrpc.MessageInfo) *bridge.Message {
	msg := &bridge.Message{
		Direction:  bridge.SignalToTelegram,
		GroupID:    info.GroupID,
		Text:       info.Text,
		SenderName: info.SenderName,
	}
	for _, id := range info.AttachmentIDs {
		msg.Attachments = append(msg.Attachments, bridge.Attachment{
			ID:        id,
			LocalPath: filepath.Join(attachmentsDir, id),
		})
	}
	if sender := info.Sender(); sender != "" && info.Timestamp != 0 {
		msg.Receipt = &bridge.ReceiptInfo{Recipient: sender, Timestamp: info.Timestamp}
	}
	return msg
}
