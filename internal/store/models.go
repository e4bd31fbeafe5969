package store

import "time"

// OwnerKind discriminates the two identity forms a chat or message can
// belong to.
type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner identifies the caller a record belongs to: a registered user
// (durable account) or a guest (client-supplied opaque id). Exactly one
// kind is set per resolved request; ownership never transfers after
// creation.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func (o Owner) IsGuest() bool {
	return o.Kind == OwnerGuest
}

type User struct {
	ID           string    `json:"id"` // UUID
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Chat struct {
	ID        string    `json:"id"` // UUID
	Title     string    `json:"title"`
	UserID    *string   `json:"user_id,omitempty"`
	GuestID   *string   `json:"guest_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID        string    `json:"id"` // UUID
	ChatID    string    `json:"chat_id"`
	UserID    *string   `json:"user_id,omitempty"`
	GuestID   *string   `json:"guest_id,omitempty"`
	Content   string    `json:"content"`
	IsAI      bool      `json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// SetOwner stamps the message with the resolved caller identity. AI
// messages carry the same owner tag as the chat so guest history stays
// attributable.
func (m *Message) SetOwner(owner Owner) {
	switch owner.Kind {
	case OwnerUser:
		m.UserID = &owner.ID
	case OwnerGuest:
		m.GuestID = &owner.ID
	}
}
