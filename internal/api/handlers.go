package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"sdata.ir/ai-chat/internal/auth"
	"sdata.ir/ai-chat/internal/core"
	"sdata.ir/ai-chat/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
	jwtSecret   string
	logger      *zap.SugaredLogger
}

func NewAPIHandler(cs *core.ChatService, jwtSecret string, logger *zap.SugaredLogger) *APIHandler {
	return &APIHandler{
		chatService: cs,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

// ownerFromRequest resolves the caller identity for the current request:
// the verified user id from the auth middleware, falling back to the
// supplied guest id.
func ownerFromRequest(r *http.Request, guestID string) (store.Owner, error) {
	return core.ResolveOwner(userIDFromContext(r.Context()), guestID)
}

func decodeBody(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// Auth handlers

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req RegisterRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.Length(6, 0)),
	)
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Errorw("failed to hash password", "email", req.Email, "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	user, err := h.chatService.CreateUser(r.Context(), req.Name, req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, "کاربر با این ایمیل قبلاً ثبت نام کرده است")
			return
		}
		h.logger.Errorw("failed to create user", "email", req.Email, "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	token, err := auth.GenerateToken(user.ID, h.jwtSecret)
	if err != nil {
		h.logger.Errorw("failed to generate token", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"token": token,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req LoginRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required),
	)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.chatService.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Errorw("failed to look up user", "email", req.Email, "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "ایمیل یا رمز عبور اشتباه است")
		return
	}

	token, err := auth.GenerateToken(user.ID, h.jwtSecret)
	if err != nil {
		h.logger.Errorw("failed to generate token", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"token": token,
	})
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.chatService.GetUserByID(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.logger.Errorw("failed to load profile", "error", err)
		respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "کاربر یافت نشد")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// GuestHandler mints an opaque guest id; no account is created for it.
func (h *APIHandler) GuestHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"guestId": uuid.NewString()})
}

// Chat handlers

type CreateChatRequest struct {
	Title   string `json:"title"`
	GuestID string `json:"guestId"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	owner, err := ownerFromRequest(r, req.GuestID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	chat, err := h.chatService.CreateChat(r.Context(), owner, req.Title)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, chat)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r, r.URL.Query().Get("guestId"))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), owner)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	respondJSON(w, http.StatusOK, chats)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r, r.URL.Query().Get("guestId"))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), owner, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chat)
}

type UpdateChatRequest struct {
	Title   string `json:"title"`
	GuestID string `json:"guestId"`
}

func (req UpdateChatRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Required),
	)
}

func (h *APIHandler) UpdateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateChatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := ownerFromRequest(r, req.GuestID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	chat, err := h.chatService.RenameChat(r.Context(), owner, chi.URLParam(r, "chatID"), req.Title)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chat)
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r, r.URL.Query().Get("guestId"))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), owner, chi.URLParam(r, "chatID")); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "چت با موفقیت حذف شد"})
}

// Message handlers

type SendMessageRequest struct {
	Content string `json:"content"`
	ChatID  string `json:"chatId"`
	GuestID string `json:"guestId"`
}

func (req SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Content, validation.Required),
		validation.Field(&req.ChatID, validation.Required),
	)
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "محتوای پیام و شناسه چت الزامی است")
		return
	}

	owner, err := ownerFromRequest(r, req.GuestID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	result, err := h.chatService.SendMessage(r.Context(), owner, req.ChatID, req.Content)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r, r.URL.Query().Get("guestId"))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), owner, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	respondJSON(w, http.StatusOK, messages)
}
