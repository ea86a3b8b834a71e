// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Bridge wires the engine together: the conversation directory, the router,
// the provisioning worker and the two delivery pipelines, all sharing the
// in-memory queues. The platform collaborators come in through the
// TelegramClient and SignalClient interfaces.
type Bridge struct {
	cfg *Config
	log zerolog.Logger

	directory *Directory
	router    *Router

	toSignal   *Queue[*Message]
	toTelegram *Queue[*Message]
	provisionQ *Queue[ProvisionRequest]

	provisioner      *Provisioner
	signalPipeline   *SignalPipeline
	telegramPipeline *TelegramPipeline
}

func New(
	cfg *Config,
	telegram TelegramClient,
	signal SignalClient,
	transcoder VoiceTranscoder,
	log zerolog.Logger,
) (*Bridge, error) {
	directory, err := OpenDirectory(cfg.MappingsFile, log)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:        cfg,
		log:        log.With().Str("component", "bridge").Logger(),
		directory:  directory,
		toSignal:   NewQueue[*Message](),
		toTelegram: NewQueue[*Message](),
		provisionQ: NewQueue[ProvisionRequest](),
	}
	b.router = NewRouter(
		directory, b.toSignal, b.toTelegram, b.provisionQ,
		cfg.Telegram.EnableChannels, log,
	)
	b.provisioner = NewProvisioner(
		telegram, signal, directory, b.router, b.provisionQ,
		cfg.Group, cfg.Delays.SignalSend(), log,
	)
	b.signalPipeline = NewSignalPipeline(
		b.toSignal, telegram, signal, transcoder,
		cfg.Delays.SignalSend(), log,
	)
	b.telegramPipeline = NewTelegramPipeline(
		b.toTelegram, telegram, signal, transcoder,
		cfg.Signal.SendVideoAsNote, cfg.Delays.TelegramSend(), log,
	)
	return b, nil
}

// Route accepts a normalized message from either platform listener.
func (b *Bridge) Route(msg *Message) {
	b.router.Route(msg)
}

// Run starts the workers and blocks until the context is cancelled and every
// worker has drained its current item.
func (b *Bridge) Run(ctx context.Context) {
	b.log.Info().
		Bool("forwarding", b.cfg.Signal.Forwarding).
		Bool("channels", b.cfg.Telegram.EnableChannels).
		Msg("Starting bridge workers")

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	start(b.provisioner.Run)
	start(b.signalPipeline.Run)
	if b.cfg.Signal.Forwarding {
		start(b.telegramPipeline.Run)
	}
	wg.Wait()
	b.log.Info().Msg("Bridge workers stopped")
}
