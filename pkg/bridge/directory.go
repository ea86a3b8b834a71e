// Copyright 2024-2026 Aiku AI

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// ChatRef identifies a Telegram conversation on the reverse-lookup path.
type ChatRef struct {
	ChatID    int64
	IsChannel bool
}

// Directory is the persisted chat-to-group mapping store. Regular chats and
// channels live in separate tables; a derived reverse index answers
// group-to-chat lookups in O(1). Every mutation rewrites the whole document.
type Directory struct {
	mu       sync.Mutex
	path     string
	chats    map[string]string
	channels map[string]string
	reverse  map[string]ChatRef
	log      zerolog.Logger
}

type directoryFile struct {
	Chats    map[string]string `json:"chats"`
	Channels map[string]string `json:"channels"`
}

// OpenDirectory loads the mapping document at path. A missing file starts an
// empty directory; any other read or parse failure is an error, since running
// without the existing mappings would re-provision every known chat.
func OpenDirectory(path string, log zerolog.Logger) (*Directory, error) {
	d := &Directory{
		path:     path,
		chats:    make(map[string]string),
		channels: make(map[string]string),
		reverse:  make(map[string]ChatRef),
		log:      log.With().Str("component", "directory").Logger(),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d.log.Info().Str("path", path).Msg("No mapping file yet, starting empty")
		return d, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var doc directoryFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if doc.Chats != nil {
		d.chats = doc.Chats
	}
	if doc.Channels != nil {
		d.channels = doc.Channels
	}
	d.rebuildReverse()
	d.log.Info().
		Int("chats", len(d.chats)).
		Int("channels", len(d.channels)).
		Msg("Loaded chat mappings")
	return d, nil
}

// SignalGroup returns the Signal group mapped to a Telegram chat, checking
// both tables.
func (d *Directory) SignalGroup(chatID int64) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strconv.FormatInt(chatID, 10)
	if groupID, ok := d.chats[key]; ok {
		return groupID, true
	}
	groupID, ok := d.channels[key]
	return groupID, ok
}

// TelegramChat resolves a Signal group back to its Telegram conversation.
func (d *Directory) TelegramChat(groupID string) (ChatRef, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ref, ok := d.reverse[groupID]
	return ref, ok
}

// Add records a new mapping and persists the whole document before returning.
func (d *Directory) Add(chatID int64, isChannel bool, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strconv.FormatInt(chatID, 10)
	if isChannel {
		d.channels[key] = groupID
	} else {
		d.chats[key] = groupID
	}
	d.reverse[groupID] = ChatRef{ChatID: chatID, IsChannel: isChannel}

	if err := d.save(); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}
	d.log.Info().
		Int64("chat_id", chatID).
		Bool("is_channel", isChannel).
		Str("group_id", groupID).
		Msg("Saved chat mapping")
	return nil
}

// save writes the document atomically via a temp file rename. Caller holds mu.
func (d *Directory) save() error {
	data, err := json.MarshalIndent(directoryFile{
		Chats:    d.chats,
		Channels: d.channels,
	}, "", "    ")
	if err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

func (d *Directory) rebuildReverse() {
	d.reverse = make(map[string]ChatRef, len(d.chats)+len(d.channels))
	for key, groupID := range d.chats {
		if chatID, err := strconv.ParseInt(key, 10, 64); err == nil {
			d.reverse[groupID] = ChatRef{ChatID: chatID}
		}
	}
	for key, groupID := range d.channels {
		if chatID, err := strconv.ParseInt(key, 10, 64); err == nil {
			d.reverse[groupID] = ChatRef{ChatID: chatID, IsChannel: true}
		}
	}
}
