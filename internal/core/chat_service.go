package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"sdata.ir/ai-chat/internal/store"
)

const (
	// GuestMessageLimit caps the user-authored messages a guest may send
	// into one chat before registration is required.
	GuestMessageLimit = 50

	// DefaultChatTitle is the placeholder a chat carries until the first
	// AI reply derives a real one.
	DefaultChatTitle = "گفتگوی جدید"
)

// ChatService orchestrates the conversation workflow: ownership checks,
// guest quota, message persistence, context assembly, generation and the
// first-reply title derivation.
type ChatService struct {
	dbStore   *store.SQLiteStore
	generator Generator
	logger    *zap.SugaredLogger
}

func NewChatService(db *store.SQLiteStore, generator Generator, logger *zap.SugaredLogger) *ChatService {
	return &ChatService{
		dbStore:   db,
		generator: generator,
		logger:    logger,
	}
}

// SendResult is the outcome of one successful send: the persisted user
// turn, the persisted AI turn, and the derived title when this send
// produced the chat's first AI reply (nil otherwise).
type SendResult struct {
	UserMessage *store.Message `json:"userMessage"`
	AIMessage   *store.Message `json:"aiMessage"`
	ChatTitle   *string        `json:"chatTitle"`
}

// SendMessage runs the send workflow strictly in order: validate
// ownership, guest quota, persist user message, build context, generate,
// derive title on first reply, persist AI message, bump the registered
// user's counter. There is no rollback; everything persisted before a
// failing step stays persisted, so a failed generation still leaves the
// user's turn saved.
func (s *ChatService) SendMessage(ctx context.Context, owner store.Owner, chatID, content string) (*SendResult, error) {
	chat, err := s.dbStore.GetChatByID(ctx, chatID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if err := s.checkGuestQuota(ctx, chatID, owner); err != nil {
		return nil, err
	}

	userMsg := store.Message{
		ChatID:  chatID,
		Content: content,
	}
	userMsg.SetOwner(owner)
	if err := s.dbStore.CreateMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	// The just-persisted user message is the newest record, so the window
	// already ends with it.
	latest, err := s.dbStore.LatestMessages(ctx, chatID, ContextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	reply, err := s.generator.GenerateReply(ctx, BuildContextWindow(latest))
	if err != nil {
		s.logger.Errorw("generation failed, user message kept", "chat_id", chatID, "error", err)
		return nil, err
	}

	// Counted before the AI message is inserted; zero means this reply is
	// the chat's first and names it. Read-then-write, best effort.
	aiCount, err := s.dbStore.CountAIMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to count AI messages: %w", err)
	}

	var chatTitle *string
	if aiCount == 0 {
		title, err := s.generator.GenerateTitle(ctx, reply)
		if err != nil {
			s.logger.Errorw("title derivation failed, user message kept", "chat_id", chatID, "error", err)
			return nil, err
		}
		if err := s.dbStore.UpdateChatTitle(ctx, chatID, owner, title); err != nil {
			return nil, fmt.Errorf("failed to save chat title: %w", err)
		}
		chatTitle = &title
	}

	aiMsg := store.Message{
		ChatID:  chatID,
		Content: reply,
		IsAI:    true,
	}
	aiMsg.SetOwner(owner)
	if err := s.dbStore.CreateMessage(ctx, &aiMsg); err != nil {
		return nil, fmt.Errorf("failed to store AI message: %w", err)
	}

	if !owner.IsGuest() {
		if err := s.dbStore.IncrementMessageCount(ctx, owner.ID); err != nil {
			return nil, fmt.Errorf("failed to increment message count: %w", err)
		}
	}

	return &SendResult{
		UserMessage: &userMsg,
		AIMessage:   &aiMsg,
		ChatTitle:   chatTitle,
	}, nil
}

// checkGuestQuota rejects a guest send once the guest has authored
// GuestMessageLimit messages in the chat. Registered users are never
// limited here. The count is taken immediately before the write; two
// concurrent sends can both pass, an accepted weak-consistency boundary.
func (s *ChatService) checkGuestQuota(ctx context.Context, chatID string, owner store.Owner) error {
	if !owner.IsGuest() {
		return nil
	}
	count, err := s.dbStore.CountGuestMessages(ctx, chatID, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to count guest messages: %w", err)
	}
	if count >= GuestMessageLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// ListMessages returns a chat's messages in creation order after
// verifying ownership. Absent and foreign-owned chats are
// indistinguishable.
func (s *ChatService) ListMessages(ctx context.Context, owner store.Owner, chatID string) ([]store.Message, error) {
	chat, err := s.dbStore.GetChatByID(ctx, chatID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return s.dbStore.MessagesByChatID(ctx, chatID)
}

// Chat CRUD

func (s *ChatService) CreateChat(ctx context.Context, owner store.Owner, title string) (*store.Chat, error) {
	if title == "" {
		title = DefaultChatTitle
	}
	return s.dbStore.CreateChat(ctx, owner, title)
}

func (s *ChatService) ListChats(ctx context.Context, owner store.Owner) ([]store.Chat, error) {
	return s.dbStore.ListChatsByOwner(ctx, owner)
}

func (s *ChatService) GetChat(ctx context.Context, owner store.Owner, chatID string) (*store.Chat, error) {
	chat, err := s.dbStore.GetChatByID(ctx, chatID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) RenameChat(ctx context.Context, owner store.Owner, chatID, title string) (*store.Chat, error) {
	if err := s.dbStore.UpdateChatTitle(ctx, chatID, owner, title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return s.GetChat(ctx, owner, chatID)
}

func (s *ChatService) DeleteChat(ctx context.Context, owner store.Owner, chatID string) error {
	if err := s.dbStore.DeleteChat(ctx, chatID, owner); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// User passthroughs for the account handlers.

func (s *ChatService) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(ctx, name, email, passwordHash)
}

func (s *ChatService) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.dbStore.GetUserByEmail(ctx, email)
}

func (s *ChatService) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.dbStore.GetUserByID(ctx, id)
}
