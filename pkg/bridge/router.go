// Copyright 2024-2026 Aiku AI

package bridge

import (
	"sync"

	"github.com/rs/zerolog"
)

// ProvisionRequest asks the provisioner to create a Signal group for a
// Telegram conversation.
type ProvisionRequest struct {
	ChatID    int64
	IsChannel bool
}

// Router dispatches canonical messages onto the delivery queues and owns the
// provisioning state: the set of chats with a group creation in flight and
// the messages buffered while they wait.
type Router struct {
	directory      *Directory
	toSignal       *Queue[*Message]
	toTelegram     *Queue[*Message]
	provision      *Queue[ProvisionRequest]
	enableChannels bool
	log            zerolog.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
	pending  map[int64][]*Message
}

func NewRouter(
	directory *Directory,
	toSignal, toTelegram *Queue[*Message],
	provision *Queue[ProvisionRequest],
	enableChannels bool,
	log zerolog.Logger,
) *Router {
	return &Router{
		directory:      directory,
		toSignal:       toSignal,
		toTelegram:     toTelegram,
		provision:      provision,
		enableChannels: enableChannels,
		log:            log.With().Str("component", "router").Logger(),
		inFlight:       make(map[int64]struct{}),
		pending:        make(map[int64][]*Message),
	}
}

// Route accepts a normalized message and either queues it for delivery,
// buffers it behind an in-flight group creation, or drops it.
func (r *Router) Route(msg *Message) {
	if msg.Text == "" && len(msg.Attachments) == 0 {
		r.log.Debug().Stringer("direction", msg.Direction).Msg("Ignoring empty message")
		return
	}

	switch msg.Direction {
	case TelegramToSignal:
		r.routeToSignal(msg)
	case SignalToTelegram:
		r.routeToTelegram(msg)
	default:
		r.log.Warn().Stringer("direction", msg.Direction).Msg("Dropping message with unknown direction")
	}
}

func (r *Router) routeToSignal(msg *Message) {
	if msg.IsChannel && !r.enableChannels {
		r.log.Debug().Int64("chat_id", msg.ChatID).Msg("Skipping channel message, channels disabled")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// An in-flight creation wins over a directory hit so buffered messages
	// keep their order: the mapping is persisted just before the pending
	// buffer is drained.
	if _, creating := r.inFlight[msg.ChatID]; creating {
		r.pending[msg.ChatID] = append(r.pending[msg.ChatID], msg)
		r.log.Info().Int64("chat_id", msg.ChatID).Msg("Group creation in progress, buffering message")
		return
	}

	if groupID, ok := r.directory.SignalGroup(msg.ChatID); ok {
		msg.GroupID = groupID
		r.toSignal.Push(msg)
		r.log.Info().
			Int64("chat_id", msg.ChatID).
			Str("group_id", groupID).
			Msg("Queued message for Signal delivery")
		return
	}

	r.inFlight[msg.ChatID] = struct{}{}
	r.pending[msg.ChatID] = append(r.pending[msg.ChatID], msg)
	r.provision.Push(ProvisionRequest{ChatID: msg.ChatID, IsChannel: msg.IsChannel})
	r.log.Info().Int64("chat_id", msg.ChatID).Msg("No Signal group for chat, initiating group creation")
}

func (r *Router) routeToTelegram(msg *Message) {
	ref, ok := r.directory.TelegramChat(msg.GroupID)
	if !ok {
		r.log.Debug().Str("group_id", msg.GroupID).Msg("No Telegram mapping for Signal group")
		return
	}
	msg.ChatID = ref.ChatID
	msg.IsChannel = ref.IsChannel
	r.toTelegram.Push(msg)
	r.log.Info().
		Str("group_id", msg.GroupID).
		Int64("chat_id", msg.ChatID).
		Int("attachments", len(msg.Attachments)).
		Msg("Queued message for Telegram delivery")
}

// resolveProvisioning finishes a group creation attempt. On success the
// buffered messages replay onto the Signal delivery queue in arrival order;
// on failure they are discarded. The in-flight marker is cleared either way.
func (r *Router) resolveProvisioning(chatID int64, groupID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buffered := r.pending[chatID]
	delete(r.pending, chatID)
	delete(r.inFlight, chatID)

	if !ok {
		if len(buffered) > 0 {
			r.log.Error().
				Int64("chat_id", chatID).
				Int("discarded", len(buffered)).
				Msg("Group creation failed, discarding buffered messages")
		}
		return
	}

	for _, msg := range buffered {
		msg.GroupID = groupID
		r.toSignal.Push(msg)
	}
	r.log.Info().
		Int64("chat_id", chatID).
		Str("group_id", groupID).
		Int("replayed", len(buffered)).
		Msg("Replayed buffered messages after group creation")
}
