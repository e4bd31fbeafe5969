package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned
	// by the caller; the two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        message_count INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT NOT NULL,
        user_id TEXT,
        guest_id TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        chat_id TEXT NOT NULL,
        user_id TEXT,
        guest_id TEXT,
        content TEXT NOT NULL,
        is_ai BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE INDEX IF NOT EXISTS idx_chats_user ON chats (user_id);
    CREATE INDEX IF NOT EXISTS idx_chats_guest ON chats (guest_id);
    CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// ownerColumn maps an Owner to the column its filter applies to. Every
// chat/message query narrows by exactly one of the two columns, never by
// an ad hoc partial filter.
func ownerColumn(owner Owner) string {
	if owner.IsGuest() {
		return "guest_id"
	}
	return "user_id"
}

// User methods

func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, message_count, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, message_count, created_at, updated_at FROM users WHERE email = ?", email))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, message_count, created_at, updated_at FROM users WHERE id = ?", id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.MessageCount, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// IncrementMessageCount bumps the running count of AI replies produced for
// a registered user. Single atomic statement, no read-modify-write.
func (s *SQLiteStore) IncrementMessageCount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET message_count = message_count + 1, updated_at = ? WHERE id = ?", time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chat methods

func (s *SQLiteStore) CreateChat(ctx context.Context, owner Owner, title string) (*Chat, error) {
	now := time.Now()
	chat := &Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch owner.Kind {
	case OwnerUser:
		chat.UserID = &owner.ID
	case OwnerGuest:
		chat.GuestID = &owner.ID
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, title, user_id, guest_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		chat.ID, chat.Title, chat.UserID, chat.GuestID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return chat, nil
}

// GetChatByID looks a chat up by id and owner. A chat owned by a different
// identity scans the same as an absent one: nil, nil.
func (s *SQLiteStore) GetChatByID(ctx context.Context, chatID string, owner Owner) (*Chat, error) {
	query := fmt.Sprintf(
		"SELECT id, title, user_id, guest_id, created_at, updated_at FROM chats WHERE id = ? AND %s = ?", ownerColumn(owner))

	var chat Chat
	err := s.db.QueryRowContext(ctx, query, chatID, owner.ID).
		Scan(&chat.ID, &chat.Title, &chat.UserID, &chat.GuestID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChatsByOwner(ctx context.Context, owner Owner) ([]Chat, error) {
	query := fmt.Sprintf(
		"SELECT id, title, user_id, guest_id, created_at, updated_at FROM chats WHERE %s = ? ORDER BY updated_at DESC", ownerColumn(owner))

	rows, err := s.db.QueryContext(ctx, query, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.UserID, &chat.GuestID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) UpdateChatTitle(ctx context.Context, chatID string, owner Owner, title string) error {
	query := fmt.Sprintf("UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND %s = ?", ownerColumn(owner))

	res, err := s.db.ExecContext(ctx, query, title, time.Now(), chatID, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChat removes a chat and every message in it within one
// transaction; messages must never outlive their chat.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string, owner Owner) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("DELETE FROM chats WHERE id = ? AND %s = ?", ownerColumn(owner))
	res, err := tx.ExecContext(ctx, query, chatID, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}

	return tx.Commit()
}

// Message methods

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	msg.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, user_id, guest_id, content, is_ai, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.UserID, msg.GuestID, msg.Content, msg.IsAI, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// MessagesByChatID returns every message of a chat in creation order.
// rowid breaks equal-timestamp ties so the order is total.
func (s *SQLiteStore) MessagesByChatID(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, user_id, guest_id, content, is_ai, created_at FROM messages WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC", chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

// LatestMessages returns up to n of the newest messages of a chat,
// newest first.
func (s *SQLiteStore) LatestMessages(ctx context.Context, chatID string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, user_id, guest_id, content, is_ai, created_at FROM messages WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", chatID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.UserID, &msg.GuestID, &msg.Content, &msg.IsAI, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountGuestMessages counts the guest-authored (non-AI) messages of a
// (chat, guest) pair; this is the quota basis for anonymous callers.
func (s *SQLiteStore) CountGuestMessages(ctx context.Context, chatID, guestID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE chat_id = ? AND guest_id = ? AND is_ai = FALSE", chatID, guestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count guest messages: %w", err)
	}
	return count, nil
}

// CountAIMessages counts AI-authored messages in a chat; zero means the
// next AI reply is the chat's first and triggers title derivation.
func (s *SQLiteStore) CountAIMessages(ctx context.Context, chatID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE chat_id = ? AND is_ai = TRUE", chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count AI messages: %w", err)
	}
	return count, nil
}
