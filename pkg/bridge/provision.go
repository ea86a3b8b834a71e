// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Provisioner is the single worker that turns ProvisionRequests into Signal
// groups. One request is handled at a time so a burst of messages from the
// same chat cannot create duplicate groups.
type Provisioner struct {
	telegram  TelegramClient
	signal    SignalClient
	directory *Directory
	router    *Router
	queue     *Queue[ProvisionRequest]
	group     GroupConfig
	delay     time.Duration
	log       zerolog.Logger
}

func NewProvisioner(
	telegram TelegramClient,
	signal SignalClient,
	directory *Directory,
	router *Router,
	queue *Queue[ProvisionRequest],
	group GroupConfig,
	delay time.Duration,
	log zerolog.Logger,
) *Provisioner {
	return &Provisioner{
		telegram:  telegram,
		signal:    signal,
		directory: directory,
		router:    router,
		queue:     queue,
		group:     group,
		delay:     delay,
		log:       log.With().Str("component", "provisioner").Logger(),
	}
}

func (p *Provisioner) Run(ctx context.Context) {
	for {
		req, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.provision(ctx, req)
		sleepCtx(ctx, p.delay)
	}
}

// provision creates the Signal group for one chat and resolves the router's
// provisioning state. The in-flight marker is always cleared, success or not.
func (p *Provisioner) provision(ctx context.Context, req ProvisionRequest) {
	log := p.log.With().Int64("chat_id", req.ChatID).Bool("is_channel", req.IsChannel).Logger()
	log.Info().Msg("Creating Signal group for Telegram chat")

	info, err := p.telegram.ChatInfo(ctx, req.ChatID)
	if err != nil {
		log.Err(err).Msg("Failed to get chat entity")
		p.router.resolveProvisioning(req.ChatID, "", false)
		return
	}
	if info.PhotoPath != "" {
		defer func() {
			if err := os.Remove(info.PhotoPath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", info.PhotoPath).Msg("Failed to remove avatar temp file")
			}
		}()
	}

	name := info.Title
	if p.group.NamePrefix != "" {
		name = p.group.NamePrefix + " " + info.Title
	}
	link := info.Title
	if info.Username != "" {
		link = "https://t.me/" + info.Username
	}

	groupID, err := p.signal.CreateGroup(ctx, CreateGroupRequest{
		Name:              name,
		Members:           []string{p.group.DefaultMember},
		Description:       "Telegram: " + link,
		ExpirationSeconds: p.group.ExpirationDays * 86400,
		AvatarPath:        info.PhotoPath,
	})
	if err != nil {
		log.Err(err).Msg("Failed to create Signal group")
		p.router.resolveProvisioning(req.ChatID, "", false)
		return
	}
	log.Info().Str("group_id", groupID).Msg("Created Signal group")

	if err := p.directory.Add(req.ChatID, req.IsChannel, groupID); err != nil {
		// The group exists, so still replay; the mapping is only lost on
		// restart and a duplicate group is worse than a rewrite retry.
		log.Err(err).Str("group_id", groupID).Msg("Failed to persist chat mapping")
	}
	p.router.resolveProvisioning(req.ChatID, groupID, true)
}

// sleepCtx waits for d unless the context finishes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
