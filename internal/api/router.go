package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func NewRouter(apiHandler *APIHandler, corsOrigins string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(corsOrigins, ","),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", apiHandler.RegisterHandler)
			r.Post("/login", apiHandler.LoginHandler)
			r.Get("/guest", apiHandler.GuestHandler)
			r.With(apiHandler.RequireAuth).Get("/profile", apiHandler.ProfileHandler)
		})

		// Chat and message routes accept either a verified user or a
		// client-supplied guest id.
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.OptionalAuth)

			r.Post("/chats", apiHandler.CreateChatHandler)
			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Get("/chats/{chatID}", apiHandler.GetChatHandler)
			r.Put("/chats/{chatID}", apiHandler.UpdateChatHandler)
			r.Delete("/chats/{chatID}", apiHandler.DeleteChatHandler)

			r.Post("/messages", apiHandler.SendMessageHandler)
			r.Get("/messages/{chatID}", apiHandler.ListMessagesHandler)
		})
	})

	return r
}
