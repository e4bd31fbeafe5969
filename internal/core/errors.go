package core

import "errors"

// Sentinel errors for the send/list workflows. Services wrap these with
// %w and handlers dispatch on errors.Is to pick a status code.
var (
	// ErrIdentityMissing: the request carried neither a verified user id
	// nor a guest id.
	ErrIdentityMissing = errors.New("user or guest identity is required")

	// ErrChatNotFound covers both a missing chat and a chat owned by a
	// different identity, so callers cannot probe for chats they do not own.
	ErrChatNotFound = errors.New("chat not found")

	// ErrQuotaExceeded: a guest hit the per-chat message ceiling.
	ErrQuotaExceeded = errors.New("guest message quota exceeded")

	// ErrGenerationUnavailable: the generation provider credential is not
	// configured.
	ErrGenerationUnavailable = errors.New("generation service is not configured")

	// ErrGenerationFailed: the provider returned no usable candidate or the
	// call failed in transit.
	ErrGenerationFailed = errors.New("generation service produced no response")
)
