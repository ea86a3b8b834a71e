// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisionFixture struct {
	*routerFixture
	telegram    *fakeTelegram
	signal      *fakeSignal
	provisioner *Provisioner
}

func newProvisionFixture(t *testing.T, group GroupConfig) *provisionFixture {
	t.Helper()
	f := &provisionFixture{
		routerFixture: newRouterFixture(t, false),
		telegram:      &fakeTelegram{downloadDir: t.TempDir()},
		signal:        &fakeSignal{createGroupID: "new-group"},
	}
	f.provisioner = NewProvisioner(
		f.telegram, f.signal, f.directory, f.router, f.provision,
		group, 0, zerolog.Nop(),
	)
	return f
}

func TestProvisionCreatesGroupAndReplays(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{DefaultMember: "+15550001111", ExpirationDays: 31})
	f.telegram.info = &ChatInfo{Title: "My Chat", Username: "mychat"}

	f.router.Route(&Message{Direction: TelegramToSignal, ChatID: 700, Text: "queued"})
	req, ok := f.provision.Pop(context.Background())
	require.True(t, ok)
	f.provisioner.provision(context.Background(), req)

	require.Len(t, f.signal.created, 1)
	created := f.signal.created[0]
	assert.Equal(t, "My Chat", created.Name)
	assert.Equal(t, []string{"+15550001111"}, created.Members)
	assert.Equal(t, "Telegram: https://t.me/mychat", created.Description)
	assert.Equal(t, 31*86400, created.ExpirationSeconds)
	assert.Empty(t, created.AvatarPath)

	groupID, ok := f.directory.SignalGroup(700)
	require.True(t, ok)
	assert.Equal(t, "new-group", groupID)

	msg := popMessage(t, f.toSignal)
	assert.Equal(t, "queued", msg.Text)
	assert.Equal(t, "new-group", msg.GroupID)
}

func TestProvisionNamePrefixAndTitleFallbackLink(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{NamePrefix: "(Telegram)", DefaultMember: "+1", ExpirationDays: 1})
	f.telegram.info = &ChatInfo{Title: "Private Group"}

	f.provisioner.provision(context.Background(), ProvisionRequest{ChatID: 701})

	require.Len(t, f.signal.created, 1)
	assert.Equal(t, "(Telegram) Private Group", f.signal.created[0].Name)
	assert.Equal(t, "Telegram: Private Group", f.signal.created[0].Description)
}

func TestProvisionAvatarPassedAndRemoved(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{DefaultMember: "+1", ExpirationDays: 1})
	avatar := filepath.Join(t.TempDir(), "avatar.jpg")
	require.NoError(t, os.WriteFile(avatar, []byte("jpg"), 0o644))
	f.telegram.info = &ChatInfo{Title: "Chat", PhotoPath: avatar}

	f.provisioner.provision(context.Background(), ProvisionRequest{ChatID: 702})

	require.Len(t, f.signal.created, 1)
	assert.Equal(t, avatar, f.signal.created[0].AvatarPath)
	assert.NoFileExists(t, avatar, "avatar temp file removed after creation")
}

func TestProvisionAvatarRemovedOnFailureToo(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{DefaultMember: "+1", ExpirationDays: 1})
	avatar := filepath.Join(t.TempDir(), "avatar.jpg")
	require.NoError(t, os.WriteFile(avatar, []byte("jpg"), 0o644))
	f.telegram.info = &ChatInfo{Title: "Chat", PhotoPath: avatar}
	f.signal.createErr = errors.New("rpc down")

	f.provisioner.provision(context.Background(), ProvisionRequest{ChatID: 703})

	assert.NoFileExists(t, avatar)
}

func TestProvisionEntityLookupFailureDiscardsPending(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{DefaultMember: "+1", ExpirationDays: 1})
	f.telegram.infoErr = errors.New("chat not found")

	f.router.Route(&Message{Direction: TelegramToSignal, ChatID: 704, Text: "doomed"})
	req, ok := f.provision.Pop(context.Background())
	require.True(t, ok)
	f.provisioner.provision(context.Background(), req)

	assert.Empty(t, f.signal.created)
	assert.Equal(t, 0, f.toSignal.Len())

	// In-flight marker cleared: the next message triggers a fresh attempt.
	f.router.Route(&Message{Direction: TelegramToSignal, ChatID: 704, Text: "again"})
	assert.Equal(t, 1, f.provision.Len())
}

func TestProvisionCreateFailureDiscardsPending(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{DefaultMember: "+1", ExpirationDays: 1})
	f.telegram.info = &ChatInfo{Title: "Chat"}
	f.signal.createErr = errors.New("boom")

	f.router.Route(&Message{Direction: TelegramToSignal, ChatID: 705, Text: "doomed"})
	req, ok := f.provision.Pop(context.Background())
	require.True(t, ok)
	f.provisioner.provision(context.Background(), req)

	assert.Equal(t, 0, f.toSignal.Len())
	_, mapped := f.directory.SignalGroup(705)
	assert.False(t, mapped)
}

func TestProvisionRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newProvisionFixture(t, GroupConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.provisioner.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
