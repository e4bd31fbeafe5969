package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sdata.ir/ai-chat/internal/store"
)

type stubGenerator struct {
	reply    string
	replyErr error
	title    string
	titleErr error

	replyCalls int
	titleCalls int
	lastTurns  []Turn
}

func (g *stubGenerator) GenerateReply(_ context.Context, turns []Turn) (string, error) {
	g.replyCalls++
	g.lastTurns = turns
	if g.replyErr != nil {
		return "", g.replyErr
	}
	return g.reply, nil
}

func (g *stubGenerator) GenerateTitle(_ context.Context, _ string) (string, error) {
	g.titleCalls++
	if g.titleErr != nil {
		return "", g.titleErr
	}
	return g.title, nil
}

func bootstrapService(t *testing.T, gen *stubGenerator) (*ChatService, *store.SQLiteStore) {
	t.Helper()

	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	return NewChatService(dbStore, gen, zap.NewNop().Sugar()), dbStore
}

func guestOwner(id string) store.Owner {
	return store.Owner{Kind: store.OwnerGuest, ID: id}
}

func TestSendMessage_FirstExchange(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "درود! چطور می‌توانم کمک کنم؟", title: "سلام و احوالپرسی"}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)
	require.Equal(t, DefaultChatTitle, chat.Title)

	result, err := svc.SendMessage(ctx, owner, chat.ID, "سلام")
	require.NoError(t, err)

	require.False(t, result.UserMessage.IsAI)
	require.Equal(t, "سلام", result.UserMessage.Content)
	require.True(t, result.AIMessage.IsAI)
	require.Equal(t, gen.reply, result.AIMessage.Content)
	require.NotNil(t, result.ChatTitle)
	require.Equal(t, gen.title, *result.ChatTitle)

	stored, err := svc.GetChat(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Equal(t, gen.title, stored.Title)

	messages, err := svc.ListMessages(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, result.UserMessage.ID, messages[0].ID)
	require.Equal(t, result.AIMessage.ID, messages[1].ID)
}

func TestSendMessage_TitleDerivedOnlyOnce(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "some short title"}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	first, err := svc.SendMessage(ctx, owner, chat.ID, "one")
	require.NoError(t, err)
	require.NotNil(t, first.ChatTitle)

	second, err := svc.SendMessage(ctx, owner, chat.ID, "two")
	require.NoError(t, err)
	require.Nil(t, second.ChatTitle)
	require.Equal(t, 1, gen.titleCalls)

	stored, err := svc.GetChat(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Equal(t, gen.title, stored.Title)
}

func TestSendMessage_GenerationFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{replyErr: ErrGenerationFailed}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, owner, chat.ID, "hello?")
	require.ErrorIs(t, err, ErrGenerationFailed)

	// The user's turn survives the failed generation; no AI turn exists.
	messages, err := svc.ListMessages(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.False(t, messages[0].IsAI)
	require.Equal(t, "hello?", messages[0].Content)
}

func TestSendMessage_TitleFailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", titleErr: ErrGenerationFailed}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, owner, chat.ID, "hello?")
	require.ErrorIs(t, err, ErrGenerationFailed)

	messages, err := svc.ListMessages(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.False(t, messages[0].IsAI)

	stored, err := svc.GetChat(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultChatTitle, stored.Title)
}

func TestSendMessage_GuestQuota(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, dbStore := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	// Seed 49 guest-authored messages; the next send is the 50th and must
	// still pass.
	for i := 0; i < GuestMessageLimit-1; i++ {
		msg := store.Message{ChatID: chat.ID, Content: "seed"}
		msg.SetOwner(owner)
		require.NoError(t, dbStore.CreateMessage(ctx, &msg))
	}

	_, err = svc.SendMessage(ctx, owner, chat.ID, "the 50th")
	require.NoError(t, err)

	before, err := svc.ListMessages(ctx, owner, chat.ID)
	require.NoError(t, err)

	// The 51st is rejected and persists nothing.
	_, err = svc.SendMessage(ctx, owner, chat.ID, "the 51st")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	after, err := svc.ListMessages(ctx, owner, chat.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
}

func TestSendMessage_NoQuotaForRegisteredUsers(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, dbStore := bootstrapService(t, gen)
	ctx := context.Background()

	user, err := dbStore.CreateUser(ctx, "Sara", "sara@example.com", "hash")
	require.NoError(t, err)
	owner := store.Owner{Kind: store.OwnerUser, ID: user.ID}

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	for i := 0; i < GuestMessageLimit; i++ {
		msg := store.Message{ChatID: chat.ID, Content: "seed"}
		msg.SetOwner(owner)
		require.NoError(t, dbStore.CreateMessage(ctx, &msg))
	}

	_, err = svc.SendMessage(ctx, owner, chat.ID, "still fine")
	require.NoError(t, err)
}

func TestSendMessage_IncrementsUserCounterOnly(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, dbStore := bootstrapService(t, gen)
	ctx := context.Background()

	user, err := dbStore.CreateUser(ctx, "Sara", "sara@example.com", "hash")
	require.NoError(t, err)
	require.EqualValues(t, 0, user.MessageCount)
	owner := store.Owner{Kind: store.OwnerUser, ID: user.ID}

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, owner, chat.ID, "hi")
	require.NoError(t, err)

	updated, err := dbStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, updated.MessageCount)

	// The equivalent guest action mutates no counter anywhere.
	guest := guestOwner("guest-1")
	guestChat, err := svc.CreateChat(ctx, guest, "")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, guest, guestChat.ID, "hi")
	require.NoError(t, err)

	unchanged, err := dbStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, unchanged.MessageCount)
}

func TestSendMessage_ContextWindowIsMostRecent(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, dbStore := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		msg := store.Message{ChatID: chat.ID, Content: "old"}
		msg.SetOwner(owner)
		require.NoError(t, dbStore.CreateMessage(ctx, &msg))
	}
	aiMsg := store.Message{ChatID: chat.ID, Content: "model said", IsAI: true}
	aiMsg.SetOwner(owner)
	require.NoError(t, dbStore.CreateMessage(ctx, &aiMsg))

	_, err = svc.SendMessage(ctx, owner, chat.ID, "newest question")
	require.NoError(t, err)

	require.Len(t, gen.lastTurns, ContextWindowSize)
	last := gen.lastTurns[len(gen.lastTurns)-1]
	require.Equal(t, Turn{Role: RoleUser, Text: "newest question"}, last)
	require.Equal(t, Turn{Role: RoleModel, Text: "model said"}, gen.lastTurns[len(gen.lastTurns)-2])
}

func TestSendMessage_OwnershipMasked(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()

	chat, err := svc.CreateChat(ctx, guestOwner("guest-a"), "")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, guestOwner("guest-b"), chat.ID, "hi")
	require.ErrorIs(t, err, ErrChatNotFound)

	_, err = svc.ListMessages(ctx, guestOwner("guest-b"), chat.ID)
	require.ErrorIs(t, err, ErrChatNotFound)
	require.Zero(t, gen.replyCalls)
}

func TestDeleteChat_ThenListIsNotFound(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "a reply", title: "a title"}
	svc, _ := bootstrapService(t, gen)
	ctx := context.Background()
	owner := guestOwner("guest-1")

	chat, err := svc.CreateChat(ctx, owner, "")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, owner, chat.ID, "hi")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChat(ctx, owner, chat.ID))

	_, err = svc.ListMessages(ctx, owner, chat.ID)
	require.ErrorIs(t, err, ErrChatNotFound)
}
